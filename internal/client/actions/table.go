// Package actions turns widget action events into follow-up behaviour:
// a scripted message or a clipboard copy of the transcript.
package actions

import "sort"

// Type identifies a widget action.
type Type string

// Known action types.
const (
	StartSituation  Type = "start_situation"
	AddPerspectives Type = "add_perspectives"
	ShowExample     Type = "show_example"
	HelpFrame       Type = "help_frame"
	GenerateMove    Type = "generate_move"
	PickOutput      Type = "pick_output"

	CopyLastMessage      Type = "copy_last_message"
	CopyWithContext      Type = "copy_with_context"
	CopyExchange         Type = "copy_exchange"
	CopyExchangeMarkdown Type = "copy_exchange_markdown"
)

// Kind is the behaviour class of an entry.
type Kind int

const (
	KindMessage Kind = iota + 1
	KindCopy
)

// Scope selects what a copy action takes from the transcript.
type Scope int

const (
	ScopeLastUser Scope = iota + 1
	ScopeWithContext
	ScopeExchange
	ScopeExchangeMarkdown
)

// Entry is one row of the action table.
type Entry struct {
	Kind    Kind
	Message string // KindMessage
	Scope   Scope  // KindCopy
}

var table = map[Type]Entry{
	StartSituation:  {Kind: KindMessage, Message: "What situation are you facing?"},
	AddPerspectives: {Kind: KindMessage, Message: "What are three different perspectives you could apply to this situation?"},
	ShowExample:     {Kind: KindMessage, Message: "Show me an example of using the Dojo Protocol with a sample situation"},
	HelpFrame:       {Kind: KindMessage, Message: "I'm not sure how to frame my situation. Can you help me with some questions?"},
	GenerateMove:    {Kind: KindMessage, Message: "Based on the perspectives collected, what's a clear next move?"},
	PickOutput:      {Kind: KindMessage, Message: "How would you like to receive your output?"},

	CopyLastMessage:      {Kind: KindCopy, Scope: ScopeLastUser},
	CopyWithContext:      {Kind: KindCopy, Scope: ScopeWithContext},
	CopyExchange:         {Kind: KindCopy, Scope: ScopeExchange},
	CopyExchangeMarkdown: {Kind: KindCopy, Scope: ScopeExchangeMarkdown},
}

// Lookup returns the entry for an action type.
func Lookup(actionType string) (Entry, bool) {
	e, ok := table[Type(actionType)]
	return e, ok
}

// Known lists every action type, sorted.
func Known() []Type {
	out := make([]Type, 0, len(table))
	for t := range table {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
