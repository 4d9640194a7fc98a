package tui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-form2/pkg/form"
	"github.com/goliatone/go-form2/pkg/path"
	"github.com/goliatone/go-form2/pkg/schema"
	"github.com/goliatone/go-form2/pkg/validation"
)

// Renderer fills a mounted form from the terminal: every item is prompted,
// each answer goes through the form's own validation, and Submit decides
// when the session is done.
type Renderer struct {
	driver            PromptDriver
	outputFormat      OutputFormat
	submitTransformer SubmitTransformer
	theme             Theme
	maxAttempts       int
	logger            logrus.FieldLogger
}

// New constructs a TUI renderer with defaults (survey driver on stderr,
// JSON output, three submit rounds).
func New(options ...Option) (*Renderer, error) {
	r := &Renderer{
		outputFormat: OutputFormatJSON,
		maxAttempts:  3,
		theme:        Theme{ErrorPrefix: "! "},
	}
	for _, opt := range options {
		if opt != nil {
			opt(r)
		}
	}
	if r.driver == nil {
		r.driver = NewSurveyDriver(os.Stderr)
	}
	if r.logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		r.logger = discard
	}
	switch r.outputFormat {
	case OutputFormatJSON, OutputFormatFormURLEncoded, OutputFormatPrettyText:
	default:
		return nil, fmt.Errorf("tui: unknown output format %q", r.outputFormat)
	}
	return r, nil
}

// Name reports the renderer identifier.
func (r *Renderer) Name() string {
	return "tui"
}

// ContentType reports the serialization format used by Render.
func (r *Renderer) ContentType() string {
	switch r.outputFormat {
	case OutputFormatFormURLEncoded:
		return "application/x-www-form-urlencoded"
	case OutputFormatPrettyText:
		return "text/plain"
	default:
		return "application/json"
	}
}

// Render fills m and serializes the submitted values.
func (r *Renderer) Render(ctx context.Context, m *schema.Mounted) ([]byte, error) {
	outcome, err := r.Fill(ctx, m)
	if err != nil {
		return nil, err
	}
	values := outcome.Values
	if r.submitTransformer != nil {
		values, err = r.submitTransformer(values)
		if err != nil {
			return nil, fmt.Errorf("tui: submit transformer: %w", err)
		}
	}
	return r.serialize(values)
}

// Fill prompts every item of m and submits. Fields reported by a failed
// submit are asked again until the form validates, the attempts run out or
// no reported field can be prompted.
func (r *Renderer) Fill(ctx context.Context, m *schema.Mounted) (form.Outcome, error) {
	if ctx == nil {
		return form.Outcome{}, errors.New("tui: context is required")
	}
	if err := ctx.Err(); err != nil {
		return form.Outcome{}, err
	}
	if m == nil {
		return form.Outcome{}, errors.New("tui: mounted form is nil")
	}

	s := &session{r: r, m: m, f: m.Form(), items: make(map[string]schema.Item)}
	for _, item := range m.Items() {
		if err := s.promptItem(ctx, nil, item); err != nil {
			return form.Outcome{}, err
		}
	}

	for attempt := 1; ; attempt++ {
		outcome := s.f.Submit(ctx)
		r.logger.WithFields(logrus.Fields{
			"form_id": s.f.ID(),
			"attempt": attempt,
			"errors":  len(outcome.Errors),
		}).Debug("tui submit")
		if outcome.OK() {
			return outcome, nil
		}
		if r.maxAttempts > 0 && attempt >= r.maxAttempts {
			return outcome, fmt.Errorf("%w after %d attempts", ErrInvalid, attempt)
		}

		retried := false
		for _, fe := range outcome.Errors {
			r.info(ctx, r.theme.ErrorPrefix+fe.Message)
			item, ok := s.items[fe.Name]
			if !ok {
				continue
			}
			retried = true
			if err := s.prompt(ctx, fe.Path, item); err != nil {
				return outcome, err
			}
		}
		if !retried {
			return outcome, fmt.Errorf("%w: %s", ErrInvalid, describeErrors(outcome.Errors))
		}
	}
}

func (r *Renderer) info(ctx context.Context, msg string) {
	_ = r.driver.Info(ctx, msg)
}

// session tracks which item every prompted path came from so failed fields
// can be asked again.
type session struct {
	r     *Renderer
	m     *schema.Mounted
	f     *form.Form
	items map[string]schema.Item
}

func (s *session) promptItem(ctx context.Context, base path.Path, item schema.Item) error {
	p := base.Clone()
	if item.Name != "" {
		rel, err := path.Parse(item.Name)
		if err != nil {
			return fmt.Errorf("tui: item %q: %w", item.Name, err)
		}
		p = p.Append(rel...)
	}
	s.items[p.String()] = item
	return s.prompt(ctx, p, item)
}

func (s *session) prompt(ctx context.Context, p path.Path, item schema.Item) error {
	if item.List {
		return s.promptList(ctx, p, item)
	}
	return s.promptValue(ctx, p, item)
}

func (s *session) promptList(ctx context.Context, p path.Path, item schema.Item) error {
	subs, err := s.m.ItemFields(p)
	if err != nil {
		return err
	}
	if len(subs) == 1 && subs[0].Name == "" && len(subs[0].Options) > 0 {
		return s.promptChoices(ctx, p, item, subs[0])
	}

	list, err := s.m.List(p)
	if err != nil {
		return err
	}
	for _, element := range list.Fields() {
		if err := s.promptElement(ctx, element.Path, subs); err != nil {
			return err
		}
	}
	for {
		message := fmt.Sprintf("Add an entry to %s?", displayLabel(item, p))
		if list.Len() > 0 {
			message = fmt.Sprintf("Add another entry to %s?", displayLabel(item, p))
		}
		add, err := s.r.driver.Ask(ctx, Question{
			Kind:    AskConfirm,
			Label:   message,
			Help:    item.Description,
			Default: Answer{Yes: item.Required && list.Len() == 0},
		})
		if err != nil {
			return err
		}
		if !add.Yes {
			return nil
		}
		element, err := s.m.AddItem(p, nil)
		if err != nil {
			return err
		}
		s.r.logger.WithField("list", p.String()).WithField("key", element.Key).Debug("tui list element added")
		if err := s.promptElement(ctx, element.Path, subs); err != nil {
			return err
		}
	}
}

func (s *session) promptElement(ctx context.Context, base path.Path, subs []schema.Item) error {
	for _, sub := range subs {
		if err := s.promptItem(ctx, base, sub); err != nil {
			return err
		}
	}
	return nil
}

// promptChoices edits a list of scalars drawn from fixed options with one
// multi-select.
func (s *session) promptChoices(ctx context.Context, p path.Path, item, element schema.Item) error {
	options := stringify(element.Options)
	var defaults []int
	if current, ok := s.f.GetFieldValue(p).([]any); ok {
		for _, value := range current {
			if idx := optionIndex(options, fmt.Sprint(value)); idx >= 0 {
				defaults = append(defaults, idx)
			}
		}
	}
	for {
		ans, err := s.r.driver.Ask(ctx, Question{
			Kind:    AskChoices,
			Label:   displayLabel(item, p),
			Help:    item.Description,
			Options: options,
			Default: Answer{Picks: defaults},
		})
		if err != nil {
			return err
		}
		chosen := make([]any, 0, len(ans.Picks))
		for _, idx := range ans.Picks {
			if idx >= 0 && idx < len(element.Options) {
				chosen = append(chosen, element.Options[idx])
			}
		}
		if err := s.f.SetFieldValue(p, chosen); err != nil {
			return err
		}
		if err := s.m.Sync(); err != nil {
			return err
		}
		msg, err := s.f.ValidateField(ctx, p)
		if err != nil {
			return err
		}
		if msg == "" {
			return nil
		}
		s.r.info(ctx, s.r.theme.ErrorPrefix+msg)
		defaults = optionIndices(options, stringify(chosen)...)
	}
}

// promptValue asks for one field until the form accepts the answer.
func (s *session) promptValue(ctx context.Context, p path.Path, item schema.Item) error {
	for {
		value, ok, err := s.ask(ctx, p, item)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := s.f.SetFieldValue(p, value); err != nil {
			return err
		}
		msg, err := s.f.ValidateField(ctx, p)
		if err != nil {
			return err
		}
		if msg == "" {
			return nil
		}
		s.r.info(ctx, s.r.theme.ErrorPrefix+msg)
	}
}

// ask runs the prompt matching the item. ok is false when the answer could
// not be converted and the question should be repeated.
func (s *session) ask(ctx context.Context, p path.Path, item schema.Item) (any, bool, error) {
	current := s.f.GetFieldValue(p)
	q := Question{
		Kind:    AskText,
		Label:   displayLabel(item, p),
		Help:    item.Description,
		Default: Answer{Text: formatValue(current)},
	}
	numeric := item.Type == validation.TypeInteger || item.Type == validation.TypeNumber
	integer := item.Type == validation.TypeInteger

	switch {
	case len(item.Options) > 0:
		q.Kind = AskChoice
		q.Options = stringify(item.Options)
		q.Default = Answer{Picks: []int{optionIndex(q.Options, formatValue(current))}}
	case item.Type == validation.TypeBoolean:
		def, _ := current.(bool)
		q.Kind = AskConfirm
		q.Default = Answer{Yes: def}
	case numeric:
		q.Check = func(text string) error {
			_, err := parseNumber(text, integer)
			return err
		}
	case item.Secret:
		q.Kind = AskSecret
		q.Default = Answer{}
	case item.Multiline:
		q.Kind = AskLongText
	}

	ans, err := s.r.driver.Ask(ctx, q)
	if err != nil {
		return nil, false, err
	}

	switch {
	case q.Kind == AskChoice:
		idx := ans.Pick()
		if idx < 0 || idx >= len(item.Options) {
			s.r.info(ctx, s.r.theme.ErrorPrefix+fmt.Sprintf("invalid selection for %s", q.Label))
			return nil, false, nil
		}
		return item.Options[idx], true, nil
	case q.Kind == AskConfirm:
		return ans.Yes, true, nil
	case numeric:
		value, err := parseNumber(ans.Text, integer)
		if err != nil {
			s.r.info(ctx, s.r.theme.ErrorPrefix+fmt.Sprintf("%s: %v", q.Label, err))
			return nil, false, nil
		}
		return value, true, nil
	default:
		return ans.Text, true, nil
	}
}

// parseNumber converts terminal input; blank input clears the field.
func parseNumber(text string, integer bool) (any, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if integer {
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a whole number", text)
		}
		return n, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, fmt.Errorf("%q is not a number", text)
	}
	return f, nil
}

func displayLabel(item schema.Item, p path.Path) string {
	if item.Label != "" {
		return item.Label
	}
	return p.String()
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func stringify(values []any) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = fmt.Sprint(v)
	}
	return out
}

func describeErrors(errs []form.FieldError) string {
	parts := make([]string, len(errs))
	for i, fe := range errs {
		parts[i] = fe.Name + ": " + fe.Message
	}
	return strings.Join(parts, "; ")
}

func (r *Renderer) serialize(values map[string]any) ([]byte, error) {
	switch r.outputFormat {
	case OutputFormatFormURLEncoded:
		return []byte(flattenForm(values)), nil
	case OutputFormatPrettyText:
		return []byte(prettyPrint(values)), nil
	default:
		return json.Marshal(values)
	}
}
