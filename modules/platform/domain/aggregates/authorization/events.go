package authorization

type CreatedEvent struct {
	Result Grant
}

type DeletedEvent struct {
	Result Grant
}

func NewCreatedEvent(result Grant) *CreatedEvent {
	return &CreatedEvent{Result: result}
}

func NewDeletedEvent(result Grant) *DeletedEvent {
	return &DeletedEvent{Result: result}
}
