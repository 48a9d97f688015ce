package domain

// Relation is an explicit arg_id<->comment_id link, created 1:1 with each
// Argument during Extraction.
type Relation struct {
	ArgID     string `json:"arg_id"`
	CommentID string `json:"comment_id"`
}

// NewRelation builds the Relation for an Argument.
func NewRelation(a Argument) Relation {
	return Relation{ArgID: a.ArgID, CommentID: a.CommentID}
}
