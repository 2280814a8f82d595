package domain

import "basegraph.app/qna/internal/model"

type AttachResult struct {
	AttachedAsChild bool
}

// AttachReply appends reply to the replies of the first node in forest whose
// id equals parentID, in pre-order. It attaches at most once and does not
// touch forest when parentID is nil or matches nothing; the caller decides
// where the reply goes in that case.
func AttachReply(forest []model.Reply, parentID *int64, reply model.Reply) AttachResult {
	if parentID == nil {
		return AttachResult{}
	}

	parent, _, ok := FindReply(forest, *parentID)
	if !ok {
		return AttachResult{}
	}
	parent.Replies = append(parent.Replies, reply)
	return AttachResult{AttachedAsChild: true}
}

// AttachOrAppend attaches reply under parentID when it exists, and otherwise
// appends it to the top level of forest.
func AttachOrAppend(forest []model.Reply, parentID *int64, reply model.Reply) ([]model.Reply, AttachResult) {
	res := AttachReply(forest, parentID, reply)
	if !res.AttachedAsChild {
		forest = append(forest, reply)
	}
	return forest, res
}

type frame struct {
	node  *model.Reply
	depth int
}

// FindReply returns the first reply with the given id in pre-order along with
// its depth (0 for top level). The walk uses an explicit stack so untrusted
// nesting depth cannot exhaust the goroutine stack.
func FindReply(forest []model.Reply, id int64) (*model.Reply, int, bool) {
	stack := make([]frame, 0, len(forest))
	for i := len(forest) - 1; i >= 0; i-- {
		stack = append(stack, frame{node: &forest[i]})
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.node.ID == id {
			return f.node, f.depth, true
		}
		children := f.node.Replies
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{node: &children[i], depth: f.depth + 1})
		}
	}
	return nil, 0, false
}
