package service

import (
	"basegraph.app/qna/internal/lock"
)

type Services struct {
	store  CollectionStore
	locker lock.Locker
}

func NewServices(store CollectionStore, locker lock.Locker) *Services {
	return &Services{
		store:  store,
		locker: locker,
	}
}

func (s *Services) Questions() QuestionService {
	return NewQuestionService(s.store, s.locker)
}
