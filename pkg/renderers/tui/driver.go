package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
)

// QuestionKind selects the widget a Question is asked with.
type QuestionKind int

const (
	AskText QuestionKind = iota
	AskSecret
	AskLongText
	AskConfirm
	// AskChoice picks one of Options.
	AskChoice
	// AskChoices picks any subset of Options.
	AskChoices
)

// Question is one prompt. Default preselects the answer: Text for the text
// kinds, Yes for AskConfirm and Picks for the choice kinds.
type Question struct {
	Kind    QuestionKind
	Label   string
	Help    string
	Options []string
	Default Answer
	// Check rejects a text answer before the prompt accepts it.
	Check func(string) error
}

// Answer is the reply to a Question. Picks index into Question.Options in
// option order.
type Answer struct {
	Text  string
	Yes   bool
	Picks []int
}

// Pick returns the first selected index, or -1 when nothing was picked.
func (a Answer) Pick() int {
	if len(a.Picks) == 0 {
		return -1
	}
	return a.Picks[0]
}

// PromptDriver asks questions and prints notes between them. The survey
// implementation is the default; tests script one.
type PromptDriver interface {
	Ask(ctx context.Context, q Question) (Answer, error)
	Info(ctx context.Context, msg string) error
}

type surveyDriver struct {
	out   io.Writer
	stdio []survey.AskOpt
}

// NewSurveyDriver returns a PromptDriver backed by survey that writes notes
// to out. When out is a terminal file the prompts are drawn there too,
// leaving stdout for the result.
func NewSurveyDriver(out io.Writer) PromptDriver {
	d := &surveyDriver{out: out}
	if fw, ok := out.(terminal.FileWriter); ok {
		d.stdio = []survey.AskOpt{survey.WithStdio(os.Stdin, fw, os.Stderr)}
	}
	return d
}

func (d *surveyDriver) Ask(ctx context.Context, q Question) (Answer, error) {
	if err := ctx.Err(); err != nil {
		return Answer{}, err
	}
	opts := append([]survey.AskOpt(nil), d.stdio...)

	var ans Answer
	var err error
	switch q.Kind {
	case AskConfirm:
		prompt := &survey.Confirm{Message: q.Label, Help: q.Help, Default: q.Default.Yes}
		err = survey.AskOne(prompt, &ans.Yes, opts...)

	case AskChoice:
		prompt := &survey.Select{Message: q.Label, Help: q.Help, Options: q.Options}
		if labels := optionLabels(q.Options, q.Default.Pick()); len(labels) == 1 {
			prompt.Default = labels[0]
		}
		var picked string
		err = survey.AskOne(prompt, &picked, opts...)
		ans.Picks = optionIndices(q.Options, picked)

	case AskChoices:
		prompt := &survey.MultiSelect{Message: q.Label, Help: q.Help, Options: q.Options}
		if labels := optionLabels(q.Options, q.Default.Picks...); len(labels) > 0 {
			prompt.Default = labels
		}
		var picked []string
		err = survey.AskOne(prompt, &picked, opts...)
		ans.Picks = optionIndices(q.Options, picked...)

	default:
		if q.Check != nil {
			check := q.Check
			opts = append(opts, survey.WithValidator(func(reply any) error {
				text, _ := reply.(string)
				return check(text)
			}))
		}
		err = survey.AskOne(textPrompt(q), &ans.Text, opts...)
	}

	if errors.Is(err, terminal.InterruptErr) {
		return Answer{}, ErrAborted
	}
	if err != nil {
		return Answer{}, err
	}
	return ans, nil
}

func (d *surveyDriver) Info(ctx context.Context, msg string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(d.out, msg)
	return err
}

func textPrompt(q Question) survey.Prompt {
	switch q.Kind {
	case AskSecret:
		return &survey.Password{Message: q.Label, Help: q.Help}
	case AskLongText:
		return &survey.Multiline{Message: q.Label, Help: q.Help, Default: q.Default.Text}
	default:
		return &survey.Input{Message: q.Label, Help: q.Help, Default: q.Default.Text}
	}
}

// optionIndex returns the position of label in options, or -1.
func optionIndex(options []string, label string) int {
	for i, option := range options {
		if option == label {
			return i
		}
	}
	return -1
}

// optionIndices maps labels back to their positions, in option order.
func optionIndices(options []string, labels ...string) []int {
	var out []int
	for i, option := range options {
		for _, label := range labels {
			if option == label {
				out = append(out, i)
				break
			}
		}
	}
	return out
}

// optionLabels maps positions to labels, skipping any out of range.
func optionLabels(options []string, indices ...int) []string {
	var out []string
	for _, idx := range indices {
		if idx >= 0 && idx < len(options) {
			out = append(out, options[idx])
		}
	}
	return out
}
