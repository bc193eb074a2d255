// Package classify labels long company lists by name with the LLM: a
// business category per company, or the probability that the company
// employs software engineers. Names are sent NamesPerPrompt at a time and
// PromptsPerRound prompts run together; each round's answers are handed to
// the caller to persist before the next round starts.
package classify

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/careers-finder/internal/cache"
	"github.com/jonathan/careers-finder/internal/llm"
	"github.com/jonathan/careers-finder/internal/prompts"
	"github.com/jonathan/careers-finder/internal/schemas"
	"github.com/jonathan/careers-finder/internal/trace"
)

const (
	DefaultNamesPerPrompt  = 100
	DefaultPromptsPerRound = 5
	DefaultTimeout         = 60 * time.Second
)

// ErrTruncated means a reply stopped at the output token limit.
var ErrTruncated = errors.New("reply hit the output limit")

// CategoryOther is assigned when the reply names no known category.
const CategoryOther = "Other"

// Categories are the labels the categorize task assigns.
var Categories = []string{
	"Finance & Banking",
	"Technology & Software",
	"Healthcare & Medical",
	"Education & Training",
	"Retail & Consumer Goods",
	"Food & Beverage",
	"Real Estate & Property",
	"Legal Services",
	"Manufacturing & Industrial",
	"Media & Entertainment",
	"Transportation & Logistics",
	"Energy & Utilities",
	"Construction & Engineering",
	"Professional Services",
	CategoryOther,
}

// Task is one kind of classification.
type Task struct {
	Name      string
	PromptKey string
	Schema    string
	// RepairTruncated keeps the complete entries of a reply cut off at the
	// output limit. Without it such a reply fails with ErrTruncated.
	RepairTruncated bool
	normalize       func(Deduction) (Deduction, error)
}

var (
	// Categorize assigns one of Categories to each company.
	Categorize = Task{
		Name:            "categorize",
		PromptKey:       prompts.KeyCategorizeSystem,
		Schema:          schemas.Categories,
		RepairTruncated: true,
		normalize:       normalizeCategory,
	}
	// HiringProbability estimates, 0 to 100, whether each company employs
	// software engineers. Input names may carry their category as
	// "Name(Category)".
	HiringProbability = Task{
		Name:      "hiring_probability",
		PromptKey: prompts.KeyHiringProbabilitySystem,
		Schema:    schemas.HiringProbability,
		normalize: stripCategory,
	}
)

// Deduction is the answer for one company. It encodes as a single-field
// object, {"Company": value}.
type Deduction struct {
	Company string
	Value   json.RawMessage
}

// MarshalJSON implements json.Marshaler.
func (d Deduction) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(map[string]json.RawMessage{d.Company: d.Value}); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Deduction) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if len(m) != 1 {
		return fmt.Errorf("deduction must name exactly one company, got %d", len(m))
	}
	for company, value := range m {
		d.Company, d.Value = company, value
	}
	return nil
}

// Category returns the value as a category name.
func (d Deduction) Category() (string, error) {
	var s string
	if err := json.Unmarshal(d.Value, &s); err != nil {
		return "", fmt.Errorf("%s has no category: %w", d.Company, err)
	}
	return s, nil
}

// Probability returns the value as a hiring probability.
func (d Deduction) Probability() (float64, error) {
	var p float64
	if err := json.Unmarshal(d.Value, &p); err != nil {
		return 0, fmt.Errorf("%s has no probability: %w", d.Company, err)
	}
	return p, nil
}

// Options tunes batching. Zero values take the defaults.
type Options struct {
	NamesPerPrompt  int
	PromptsPerRound int
	// Timeout bounds each LLM call.
	Timeout time.Duration
	Tier    llm.ModelTier
}

// PersistFunc saves the deductions of one finished round.
type PersistFunc func(round []Deduction) error

// Classifier runs one Task. Replies are memoized in the cache store by
// prompt.
type Classifier struct {
	client llm.Client
	store  cache.Store
	task   Task
	opts   Options
}

// New creates a Classifier. store may be nil.
func New(client llm.Client, store cache.Store, task Task, opts Options) *Classifier {
	if opts.NamesPerPrompt <= 0 {
		opts.NamesPerPrompt = DefaultNamesPerPrompt
	}
	if opts.PromptsPerRound <= 0 {
		opts.PromptsPerRound = DefaultPromptsPerRound
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Tier == "" {
		opts.Tier = llm.TierStandard
	}
	return &Classifier{client: client, store: store, task: task, opts: opts}
}

// Run classifies names round by round and returns every deduction made. A
// prompt that fails is logged and its names are left for a later run; a
// persist error or a cancelled ctx stops the run.
func (c *Classifier) Run(ctx context.Context, names []string, persist PersistFunc) ([]Deduction, error) {
	logger := trace.Logger(ctx).With("task", c.task.Name)
	lists := SplitPrompts(names, c.opts.NamesPerPrompt)
	rounds := (len(lists) + c.opts.PromptsPerRound - 1) / c.opts.PromptsPerRound
	logger.Info("classifying companies", "companies", len(names), "prompts", len(lists), "rounds", rounds)

	var all []Deduction
	for i := 0; i < len(lists); i += c.opts.PromptsPerRound {
		if err := ctx.Err(); err != nil {
			return all, err
		}
		round := c.round(ctx, lists[i:min(i+c.opts.PromptsPerRound, len(lists))])
		n := i/c.opts.PromptsPerRound + 1
		logger.Info("completed round", "round", n, "rounds", rounds, "deductions", len(round))

		if persist != nil && len(round) > 0 {
			if err := persist(round); err != nil {
				return all, fmt.Errorf("failed to persist round %d: %w", n, err)
			}
		}
		all = append(all, round...)
	}
	return all, nil
}

func (c *Classifier) round(ctx context.Context, lists []string) []Deduction {
	results := make([][]Deduction, len(lists))
	var g errgroup.Group
	for i, list := range lists {
		g.Go(func() error {
			got, err := c.Classify(ctx, list)
			if err != nil {
				trace.Logger(ctx).Error("classification prompt failed", "task", c.task.Name, "error", err)
				return nil
			}
			results[i] = got
			return nil
		})
	}
	_ = g.Wait()

	var out []Deduction
	for _, r := range results {
		out = append(out, r...)
	}
	return out
}

// Classify sends one newline-separated company list and returns the
// deductions in the reply.
func (c *Classifier) Classify(ctx context.Context, companyList string) ([]Deduction, error) {
	logger := trace.Logger(ctx)

	system, err := prompts.Get(prompts.ClassifyFile, c.task.PromptKey)
	if err != nil {
		return nil, err
	}
	key := CacheKey(c.task, system, companyList)

	if c.store != nil {
		entry, ok, err := c.store.Get(ctx, key)
		if err != nil {
			logger.Warn("classification cache read failed", "key", key, "error", err)
		} else if ok {
			var cached []Deduction
			if err := json.Unmarshal([]byte(entry.Value), &cached); err == nil {
				logger.Debug("classification cache hit", "key", key, "count", len(cached))
				return cached, nil
			}
			logger.Warn("discarding unreadable classification cache entry", "key", key)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()
	resp, err := c.client.GenerateJSON(callCtx, system, companyList, c.opts.Tier)
	if err != nil {
		return nil, fmt.Errorf("%s prompt failed: %w", c.task.Name, err)
	}
	logger.Debug("classification prompt was sent", "task", c.task.Name,
		"prompt_tokens", resp.PromptTokens, "output_tokens", resp.OutputTokens, "truncated", resp.Truncated)

	if strings.TrimSpace(resp.Text) == "" {
		logger.Error("classification prompt resulted in an empty reply", "task", c.task.Name)
		return nil, nil
	}
	found, err := c.parse(ctx, resp)
	if err != nil {
		return nil, err
	}

	if c.store != nil {
		payload, _ := json.Marshal(found)
		if err := c.store.Set(ctx, key, cache.Found(string(payload))); err != nil {
			logger.Warn("classification cache write failed", "key", key, "error", err)
		}
	}
	return found, nil
}

func (c *Classifier) parse(ctx context.Context, resp *llm.Response) ([]Deduction, error) {
	payload := llm.CleanJSONBlock(resp.Text)
	if resp.Truncated {
		if !c.task.RepairTruncated {
			return nil, ErrTruncated
		}
		repaired, err := llm.RepairTruncatedArray(resp.Text)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTruncated, err)
		}
		trace.Logger(ctx).Info("fixing partial json reply due to the output limit", "task", c.task.Name)
		payload = repaired
	}

	if err := schemas.Validate(c.task.Schema, payload); err != nil {
		return nil, fmt.Errorf("invalid %s reply: %w", c.task.Name, err)
	}
	var found []Deduction
	if err := json.Unmarshal([]byte(payload), &found); err != nil {
		return nil, fmt.Errorf("failed to decode %s reply: %w", c.task.Name, err)
	}

	if c.task.normalize != nil {
		for i, d := range found {
			n, err := c.task.normalize(d)
			if err != nil {
				return nil, err
			}
			found[i] = n
		}
	}
	return found, nil
}

// CacheKey derives the memoization key of one prompt.
func CacheKey(task Task, system, companyList string) string {
	h := sha256.New()
	h.Write([]byte(system))
	h.Write([]byte{0})
	h.Write([]byte(companyList))
	return "classify:" + task.Name + ":" + hex.EncodeToString(h.Sum(nil))
}

// SplitPrompts joins names into newline-separated lists of at most
// perPrompt names each.
func SplitPrompts(names []string, perPrompt int) []string {
	if perPrompt <= 0 {
		perPrompt = DefaultNamesPerPrompt
	}
	var lists []string
	for i := 0; i < len(names); i += perPrompt {
		lists = append(lists, strings.Join(names[i:min(i+perPrompt, len(names))], "\n"))
	}
	return lists
}

// NormalizeCategory maps a reply's category onto Categories, ignoring case,
// list numbering such as "2. " and trailing remarks such as "Other (for
// ...)". Anything unrecognized becomes CategoryOther.
func NormalizeCategory(raw string) string {
	s := strings.TrimSpace(raw)
	if head, rest, ok := strings.Cut(s, ". "); ok && isNumber(head) {
		s = rest
	}
	if i := strings.Index(s, " ("); i >= 0 {
		s = s[:i]
	}
	for _, c := range Categories {
		if strings.EqualFold(s, c) {
			return c
		}
	}
	return CategoryOther
}

func normalizeCategory(d Deduction) (Deduction, error) {
	category, err := d.Category()
	if err != nil {
		return d, err
	}
	value, err := json.Marshal(NormalizeCategory(category))
	if err != nil {
		return d, err
	}
	return Deduction{Company: d.Company, Value: value}, nil
}

// stripCategory drops a "(Category)" suffix the reply may echo back from
// the input name.
func stripCategory(d Deduction) (Deduction, error) {
	name := strings.TrimSpace(d.Company)
	if strings.HasSuffix(name, ")") {
		if i := strings.LastIndex(name, "("); i > 0 {
			for _, c := range Categories {
				if strings.EqualFold(name[i+1:len(name)-1], c) {
					name = strings.TrimSpace(name[:i])
					break
				}
			}
		}
	}
	return Deduction{Company: name, Value: d.Value}, nil
}

func isNumber(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
