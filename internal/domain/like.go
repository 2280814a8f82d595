package domain

import "basegraph.app/qna/internal/model"

// ToggleLike adds userID to q.LikedBy, or removes it when already present.
// Likes is re-derived from LikedBy, which also repairs a drifted counter.
func ToggleLike(q *model.Question, userID string) model.LikeResult {
	kept := make([]string, 0, len(q.LikedBy)+1)
	found := false
	for _, u := range q.LikedBy {
		if u == userID {
			found = true
			continue
		}
		kept = append(kept, u)
	}
	if !found {
		kept = append(kept, userID)
	}

	q.LikedBy = kept
	q.Likes = len(kept)

	return model.LikeResult{Likes: q.Likes, IsLiked: !found}
}
