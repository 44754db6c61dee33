package domain

// JobMessage is a job delivery handed from a queue consumer to the pool
type JobMessage struct {
	JobID       string
	JobName     string
	Queue       string
	DeliveryTag uint64
}
