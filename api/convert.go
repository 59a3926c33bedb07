package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// ConvertMermaid turns a Mermaid diagram into PDDL. domain is optional
// context for problem generation. attempts below 1 leaves the server default.
func (c *Client) ConvertMermaid(ctx context.Context, text, domain string, attempts int) (ConversionResult, error) {
	if text == "" {
		return ConversionResult{}, fmt.Errorf("text: %w", ErrMissingField)
	}

	body := map[string]string{"text": text}
	if domain = PreparePDDL(domain); domain != "" {
		body["domain"] = domain
	}

	var out ConversionResult
	err := c.postJSON(ctx, "/convert/mermaid", attemptsQuery(attempts), body, &out)
	return out, err
}

// ConvertNatural generates PDDL of the given type from a natural language
// description. With generateBoth the server returns domain and problem.
func (c *Client) ConvertNatural(ctx context.Context, pddlType PDDLType, text, domain string, generateBoth bool, attempts int) (ConversionResult, error) {
	if pddlType == "" {
		return ConversionResult{}, fmt.Errorf("pddl type: %w", ErrMissingField)
	}
	if text == "" {
		return ConversionResult{}, fmt.Errorf("text: %w", ErrMissingField)
	}

	query := attemptsQuery(attempts)
	if generateBoth {
		query.Set("generate_both", "true")
	}

	body := map[string]string{"text": text}
	if domain = PreparePDDL(domain); domain != "" {
		body["domain"] = domain
	}

	var out ConversionResult
	path := "/convert/natural_language/" + url.PathEscape(string(pddlType))
	err := c.postJSON(ctx, path, query, body, &out)
	return out, err
}

// ConvertToMermaid renders a domain or problem as a Mermaid diagram.
func (c *Client) ConvertToMermaid(ctx context.Context, pddlType PDDLType, pddl string) (ConversionResult, error) {
	if pddlType == "" {
		return ConversionResult{}, fmt.Errorf("pddl type: %w", ErrMissingField)
	}
	pddl = PreparePDDL(pddl)
	if pddl == "" {
		return ConversionResult{}, fmt.Errorf("pddl: %w", ErrMissingField)
	}

	var out ConversionResult
	path := "/convert/pddl/" + url.PathEscape(string(pddlType)) + "/mermaid"
	err := c.postJSON(ctx, path, nil, map[string]string{"pddl": pddl}, &out)
	return out, err
}

func attemptsQuery(attempts int) url.Values {
	query := url.Values{}
	if attempts > 0 {
		query.Set("attempts", strconv.Itoa(attempts))
	}
	return query
}
