package chat

// EventName names an outbound event as clients subscribe to it.
type EventName string

const (
	EventRegistered            EventName = "Registered"
	EventUserJoined            EventName = "UserJoined"
	EventUserLeft              EventName = "UserLeft"
	EventUserList              EventName = "UserList"
	EventReceivePublicMessage  EventName = "ReceivePublicMessage"
	EventReceivePrivateMessage EventName = "ReceivePrivateMessage"
	EventUserTyping            EventName = "UserTyping"
	EventConversationSeen      EventName = "ConversationSeen"
)

// Event is one outbound event with its payload. Payloads are the structs
// below and are immutable once built, so one Event value can be handed to
// every recipient of a fan-out.
type Event struct {
	Name EventName
	Data any
}

// UsernamePayload is the data of Registered, UserJoined and UserLeft.
type UsernamePayload struct {
	Username string `json:"username"`
}

// UserListPayload carries the sorted roster of online usernames.
type UserListPayload struct {
	Users []string `json:"users"`
}

// PublicMessagePayload is the data of ReceivePublicMessage.
type PublicMessagePayload struct {
	User      string `json:"user"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// PrivateMessagePayload is the data of ReceivePrivateMessage. Both parties
// receive the same payload.
type PrivateMessagePayload struct {
	FromUser  string `json:"fromUser"`
	ToUser    string `json:"toUser"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// TypingPayload carries a nil ToUser for typing in the public conversation.
type TypingPayload struct {
	FromUser string  `json:"fromUser"`
	ToUser   *string `json:"toUser"`
}

// SeenPayload names the user who read the conversation.
type SeenPayload struct {
	ByUser string `json:"byUser"`
}

func registeredEvent(name string) Event {
	return Event{Name: EventRegistered, Data: UsernamePayload{Username: name}}
}

func userJoinedEvent(name string) Event {
	return Event{Name: EventUserJoined, Data: UsernamePayload{Username: name}}
}

func userLeftEvent(name string) Event {
	return Event{Name: EventUserLeft, Data: UsernamePayload{Username: name}}
}

func userListEvent(users []string) Event {
	return Event{Name: EventUserList, Data: UserListPayload{Users: users}}
}
