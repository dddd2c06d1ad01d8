package role

type MembershipAddedEvent struct {
	Result Membership
}

type MembershipRemovedEvent struct {
	Result Membership
}

func NewMembershipAddedEvent(result Membership) *MembershipAddedEvent {
	return &MembershipAddedEvent{Result: result}
}

func NewMembershipRemovedEvent(result Membership) *MembershipRemovedEvent {
	return &MembershipRemovedEvent{Result: result}
}
