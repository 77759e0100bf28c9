// Package comment defines TaskComment, an append-only note on a task that
// is scanned for @handle mentions same as a document body.
package comment

import "time"

type TaskComment struct {
	ID            string    `json:"id"`
	TaskID        string    `json:"task_id"`
	AuthorAgentID string    `json:"author_agent_id"`
	Body          string    `json:"body"`
	CreatedAt     time.Time `json:"created_at"`
}

func New(taskID, authorAgentID, body string) TaskComment {
	return TaskComment{
		TaskID:        taskID,
		AuthorAgentID: authorAgentID,
		Body:          body,
		CreatedAt:     time.Now().UTC(),
	}
}
