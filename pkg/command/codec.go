package command

import (
	"encoding/json"
	"time"

	"gopkg.in/yaml.v3"
)

// Record is the flat wire form of a Command, shared by JSON and YAML.
type Record struct {
	Type       Kind      `json:"type" yaml:"type"`
	Selector   string    `json:"selector,omitempty" yaml:"selector,omitempty"`
	Value      string    `json:"value,omitempty" yaml:"value,omitempty"`
	Direction  Direction `json:"direction,omitempty" yaml:"direction,omitempty"`
	Amount     int       `json:"amount,omitempty" yaml:"amount,omitempty"`
	Mode       WaitMode  `json:"mode,omitempty" yaml:"mode,omitempty"`
	DurationMs int64     `json:"duration_ms,omitempty" yaml:"duration_ms,omitempty"`
	TimeoutMs  int64     `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
	Key        string    `json:"key,omitempty" yaml:"key,omitempty"`
	Modifiers  []string  `json:"modifiers,omitempty" yaml:"modifiers,omitempty"`
}

// ToRecord flattens a command.
func ToRecord(c Command) Record {
	switch v := c.(type) {
	case Click:
		return Record{Type: KindClick, Selector: v.Selector}
	case DoubleClick:
		return Record{Type: KindDoubleClick, Selector: v.Selector}
	case RightClick:
		return Record{Type: KindRightClick, Selector: v.Selector}
	case Type:
		return Record{Type: KindType, Selector: v.Selector, Value: v.Value}
	case Set:
		return Record{Type: KindSet, Selector: v.Selector, Value: v.Value}
	case Scroll:
		return Record{Type: KindScroll, Selector: v.Selector, Direction: v.Direction, Amount: v.Amount}
	case Wait:
		return Record{
			Type:       KindWait,
			Mode:       v.Mode,
			Selector:   v.Selector,
			DurationMs: v.Duration.Milliseconds(),
			TimeoutMs:  v.Timeout.Milliseconds(),
		}
	case Shortcut:
		return Record{Type: KindShortcut, Key: v.Key, Modifiers: v.Modifiers.Names()}
	case KeyPress:
		return Record{Type: KindKeyPress, Key: v.Key}
	}
	return Record{}
}

// FromRecord rebuilds a command from its wire form.
func FromRecord(r Record) (Command, error) {
	switch r.Type {
	case KindClick:
		return Click{Selector: r.Selector}, nil
	case KindDoubleClick:
		return DoubleClick{Selector: r.Selector}, nil
	case KindRightClick:
		return RightClick{Selector: r.Selector}, nil
	case KindType:
		return Type{Selector: r.Selector, Value: r.Value}, nil
	case KindSet:
		return Set{Selector: r.Selector, Value: r.Value}, nil
	case KindScroll:
		return Scroll{Selector: r.Selector, Direction: r.Direction, Amount: r.Amount}, nil
	case KindWait:
		mode := r.Mode
		if mode == "" {
			mode = WaitTime
			if r.Selector != "" {
				mode = WaitSelector
			}
		}
		return Wait{
			Mode:     mode,
			Selector: r.Selector,
			Duration: time.Duration(r.DurationMs) * time.Millisecond,
			Timeout:  time.Duration(r.TimeoutMs) * time.Millisecond,
		}, nil
	case KindShortcut:
		mods, err := ParseModifiers(r.Modifiers)
		if err != nil {
			return nil, err
		}
		return Shortcut{Key: r.Key, Modifiers: mods}, nil
	case KindKeyPress:
		return KeyPress{Key: r.Key}, nil
	}
	return nil, &UnknownKindError{Kind: string(r.Type)}
}

// List is a command sequence with JSON and YAML encodings.
type List []Command

// Records converts the list to its wire form.
func (l List) Records() []Record {
	out := make([]Record, len(l))
	for i, c := range l {
		out[i] = ToRecord(c)
	}
	return out
}

// FromRecords decodes a slice of wire records.
func FromRecords(recs []Record) (List, error) {
	out := make(List, 0, len(recs))
	for _, r := range recs {
		c, err := FromRecord(r)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (l List) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Records())
}

func (l *List) UnmarshalJSON(data []byte) error {
	var recs []Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return err
	}
	decoded, err := FromRecords(recs)
	if err != nil {
		return err
	}
	*l = decoded
	return nil
}

func (l List) MarshalYAML() (interface{}, error) {
	return l.Records(), nil
}

func (l *List) UnmarshalYAML(node *yaml.Node) error {
	var recs []Record
	if err := node.Decode(&recs); err != nil {
		return err
	}
	decoded, err := FromRecords(recs)
	if err != nil {
		return err
	}
	*l = decoded
	return nil
}
