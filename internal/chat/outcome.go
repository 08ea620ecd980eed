package chat

// Reason explains why an action was absorbed without effect.
type Reason string

const (
	ReasonBlankUsername  Reason = "blank_username"
	ReasonBlankSender    Reason = "blank_sender"
	ReasonBlankBody      Reason = "blank_body"
	ReasonBlankRecipient Reason = "blank_recipient"
	ReasonUnknownCaller  Reason = "unknown_caller"
)

// Outcome reports whether a router action took effect. Invalid input and
// unknown callers are not errors: the action is Ignored and no event is
// emitted.
type Outcome struct {
	Applied bool
	Reason  Reason
}

// Applied is the outcome of an action that took effect.
var Applied = Outcome{Applied: true}

// Ignored returns the outcome of an action absorbed for reason.
func Ignored(reason Reason) Outcome {
	return Outcome{Reason: reason}
}

// String renders o for logs.
func (o Outcome) String() string {
	if o.Applied {
		return "applied"
	}
	return "ignored: " + string(o.Reason)
}
