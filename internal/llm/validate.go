package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// compiled holds one compiled schema per Schema.Name.
var compiled sync.Map

// finish is the last step of every provider's Generate. For schema
// requests it rejects truncated answers, strips a code fence and validates
// what is left.
func finish(req Request, resp *Response) (*Response, error) {
	if req.Schema == nil {
		return resp, nil
	}
	if resp.StopReason == stopMaxTokens {
		return nil, &ErrMaxTokensExceeded{Content: resp.Content}
	}
	resp.Content = unfence(resp.Content)
	if err := validateResponse(req.Schema, resp.Content); err != nil {
		return nil, err
	}
	return resp, nil
}

// unfence removes a ```json ... ``` wrapper, which models add now and then
// even in JSON mode.
func unfence(raw []byte) []byte {
	b := bytes.TrimSpace(raw)
	rest, fenced := bytes.CutPrefix(b, []byte("```"))
	if !fenced {
		return b
	}
	if _, body, ok := bytes.Cut(rest, []byte("\n")); ok {
		rest = body
	}
	rest = bytes.TrimSpace(rest)
	rest, _ = bytes.CutSuffix(rest, []byte("```"))
	return bytes.TrimSpace(rest)
}

// validateResponse checks raw against schema. Every failure, including a
// schema that does not compile, is an *ErrInvalidResponse so the caller
// falls back the same way.
func validateResponse(schema *Schema, raw json.RawMessage) error {
	if schema == nil {
		return nil
	}
	invalid := func(format string, args ...any) error {
		return &ErrInvalidResponse{Content: raw, Err: fmt.Errorf(format, args...)}
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return invalid("not json: %w", err)
	}
	sch, err := compile(schema)
	if err != nil {
		return invalid("schema %s: %w", schema.Name, err)
	}
	if err := sch.Validate(doc); err != nil {
		return invalid("%s: %w", schema.Name, err)
	}
	return nil
}

func compile(schema *Schema) (*jsonschema.Schema, error) {
	if s, ok := compiled.Load(schema.Name); ok {
		return s.(*jsonschema.Schema), nil
	}

	// The compiler wants decoded JSON, not Go literals such as int.
	def, err := json.Marshal(schema.Definition)
	if err != nil {
		return nil, err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(def))
	if err != nil {
		return nil, err
	}

	url := "mem://traverse/" + schema.Name + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, err
	}
	s, err := c.Compile(url)
	if err != nil {
		return nil, err
	}
	actual, _ := compiled.LoadOrStore(schema.Name, s)
	return actual.(*jsonschema.Schema), nil
}
