package queue

import "errors"

var (
	ErrRepositoryNil            = errors.New("repository cannot be nil")
	ErrPayloadNil               = errors.New("payload cannot be nil")
	ErrInvalidPriority          = errors.New("priority must be between 0 and 100")
	ErrHandlerNotFound          = errors.New("no handler registered for task type")
	ErrNoHandlers               = errors.New("no task handlers registered")
	ErrNoTaskToClaim            = errors.New("no task to claim")
	ErrTaskNotFound             = errors.New("task not found")
	ErrTaskNotProcessing        = errors.New("task is not in processing state")
	ErrWorkerAlreadyStarted     = errors.New("worker already started")
	ErrWorkerNotStarted         = errors.New("worker not started")
	ErrShutdownTimeout          = errors.New("worker shutdown timed out")
	ErrFailedToUpdateTaskStatus = errors.New("failed to update task status")
	ErrFailedToMoveToDLQ        = errors.New("failed to move task to dead letter queue")
)
