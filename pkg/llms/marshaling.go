package llms

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// part type tags used in the JSON encoding of a Message
const (
	partText         = "text"
	partImageURL     = "image_url"
	partBinary       = "binary"
	partToolCall     = "tool_call"
	partToolResponse = "tool_response"
)

// partJSON is the flat, type tagged JSON form of a ContentPart.
type partJSON struct {
	Type string `json:"type"`

	Text string `json:"text,omitempty"`

	URL    string `json:"url,omitempty"`
	Detail string `json:"detail,omitempty"`

	MIMEType string `json:"mime_type,omitempty"`
	// Data is base64 encoded by encoding/json
	Data []byte `json:"data,omitempty"`

	ID       string        `json:"id,omitempty"`
	CallType string        `json:"call_type,omitempty"`
	Function *FunctionCall `json:"function,omitempty"`

	ToolCallID string `json:"tool_call_id,omitempty"`
	Name       string `json:"name,omitempty"`
	Content    string `json:"content,omitempty"`
}

type messageJSON struct {
	Role  Role       `json:"role"`
	Parts []partJSON `json:"parts"`
}

func toPartJSON(p ContentPart) (partJSON, error) {
	switch typ := p.(type) {
	case TextContent:
		return partJSON{Type: partText, Text: typ.Text}, nil
	case ImageURLContent:
		return partJSON{Type: partImageURL, URL: typ.URL, Detail: typ.Detail}, nil
	case BinaryContent:
		return partJSON{Type: partBinary, MIMEType: typ.MIMEType, Data: typ.Data}, nil
	case ToolCall:
		return partJSON{Type: partToolCall, ID: typ.ID, CallType: typ.Type, Function: typ.FunctionCall}, nil
	case ToolCallResponse:
		return partJSON{Type: partToolResponse, ToolCallID: typ.ToolCallID, Name: typ.Name, Content: typ.Content}, nil
	default:
		return partJSON{}, errors.Newf("unsupported content part: %T", p)
	}
}

func (p partJSON) toPart() (ContentPart, error) {
	switch p.Type {
	case partText, "":
		return TextContent{Text: p.Text}, nil
	case partImageURL:
		if p.URL == "" {
			return nil, errors.New("missing url in image_url part")
		}
		return ImageURLContent{URL: p.URL, Detail: p.Detail}, nil
	case partBinary:
		if p.MIMEType == "" {
			return nil, errors.New("missing mime_type in binary part")
		}
		return BinaryContent{MIMEType: p.MIMEType, Data: p.Data}, nil
	case partToolCall:
		if p.ID == "" {
			return nil, errors.New("missing id in tool_call part")
		}
		fc := p.Function
		if fc == nil {
			fc = &FunctionCall{}
		}
		return ToolCall{ID: p.ID, Type: p.CallType, FunctionCall: fc}, nil
	case partToolResponse:
		if p.ToolCallID == "" {
			return nil, errors.New("missing tool_call_id in tool_response part")
		}
		return ToolCallResponse{ToolCallID: p.ToolCallID, Name: p.Name, Content: p.Content}, nil
	default:
		return nil, errors.Newf("unknown content type: %q", p.Type)
	}
}

// MarshalJSON implements json.Marshaler
func (m Message) MarshalJSON() ([]byte, error) {
	mj := messageJSON{
		Role:  m.Role,
		Parts: make([]partJSON, 0, len(m.Parts)),
	}
	for _, p := range m.Parts {
		pj, err := toPartJSON(p)
		if err != nil {
			return nil, err
		}
		mj.Parts = append(mj.Parts, pj)
	}
	return json.Marshal(mj)
}

// UnmarshalJSON implements json.Unmarshaler
func (m *Message) UnmarshalJSON(data []byte) error {
	var mj messageJSON
	if err := json.Unmarshal(data, &mj); err != nil {
		return errors.WithStack(err)
	}
	m.Role = mj.Role
	m.Parts = make([]ContentPart, 0, len(mj.Parts))
	for i, pj := range mj.Parts {
		p, err := pj.toPart()
		if err != nil {
			return errors.WithMessagef(err, "part %d", i)
		}
		m.Parts = append(m.Parts, p)
	}
	return nil
}

func mustMarshalPart(p ContentPart) []byte {
	pj, err := toPartJSON(p)
	if err != nil {
		return nil
	}
	js, _ := json.Marshal(pj)
	return js
}
