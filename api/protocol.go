package api

const taskBodyMaxSize = 100 * 1024 // 100 KiB

const (
	msgInvalidTask = "Invalid task data"
	msgNotFound    = "Task not found"
	msgReadFailed  = "Failed to read task file"
	msgParseFailed = "Failed to parse task data"
	msgInternal    = "Internal server error"
)

// Write failure messages per operation.
const (
	msgCreateFailed = "Failed to save the new task"
	msgUpdateFailed = "Failed to save task"
	msgDeleteFailed = "Failed to delete task"
)

// body of every non-2xx task response
type errorResponse struct {
	Error string `json:"error"`
}

// DELETE /tasks/:id response body
type messageResponse struct {
	Message string `json:"message"`
}
