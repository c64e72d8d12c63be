package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

// Message kinds as reported by the API
const (
	kindChat    = "chat"
	kindPrivate = "private"
	kindStatus  = "status"
)

// broadcast is the recipient that addresses everyone
const broadcast = "Todos"

// Output handles formatting output based on the configured format
type Output struct {
	format string
	out    io.Writer
	errOut io.Writer
	colors bool
}

// NewOutput creates a new Output formatter
func NewOutput(format string, out, errOut io.Writer, colors bool) *Output {
	return &Output{format: format, out: out, errOut: errOut, colors: colors}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		_, _ = fmt.Fprintln(o.errOut, string(data))
	} else {
		_, _ = fmt.Fprintf(o.errOut, "%s %s\n", o.paint(color.FgRed, "Error:"), err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		_, _ = fmt.Fprintln(o.out, string(data))
	} else {
		_, _ = fmt.Fprintln(o.out, msg)
	}
}

// PrintStream outputs messages one per line as they arrive
func (o *Output) PrintStream(msgs []Message) {
	for _, m := range msgs {
		if o.format == "json" {
			data, _ := json.Marshal(m)
			_, _ = fmt.Fprintln(o.out, string(data))
		} else {
			_, _ = fmt.Fprintln(o.out, o.messageLine(m))
		}
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case Participant:
		o.printParticipants([]Participant{v})
	case []Participant:
		o.printParticipants(v)
	case Message:
		_, _ = fmt.Fprintln(o.out, o.messageLine(v))
	case []Message:
		o.printMessages(v)
	case HealthResult:
		_, _ = fmt.Fprintf(o.out, "Status: %s\n", v.Status)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// Participant response type (matches API)
type Participant struct {
	Name     string    `json:"name"`
	LastSeen time.Time `json:"last_seen"`
}

// Message response type
type Message struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Text      string    `json:"text"`
	Type      string    `json:"type"`
	Time      string    `json:"time"`
	CreatedAt time.Time `json:"created_at"`
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

func (o *Output) printParticipants(ps []Participant) {
	if len(ps) == 0 {
		_, _ = fmt.Fprintln(o.out, "No participants online")
		return
	}

	table := o.newTable([]string{"Name", "Last Seen"})
	for _, p := range ps {
		table.Append([]string{p.Name, p.LastSeen.Local().Format(time.TimeOnly)})
	}
	table.Render()
}

func (o *Output) printMessages(ms []Message) {
	if len(ms) == 0 {
		_, _ = fmt.Fprintln(o.out, "No messages")
		return
	}

	table := o.newTable([]string{"Time", "Type", "From", "To", "Text"})
	for _, m := range ms {
		table.Append([]string{m.Time, o.paintKind(m.Type, m.Type), m.From, m.To, m.Text})
	}
	table.Render()
}

func (o *Output) newTable(header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(o.out)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)
	return table
}

// messageLine renders one message the way a chat window shows it
func (o *Output) messageLine(m Message) string {
	switch m.Type {
	case kindStatus:
		return fmt.Sprintf("%s %s", m.Time, o.paintKind(m.Type, "* "+m.From+" "+m.Text))
	case kindPrivate:
		return fmt.Sprintf("%s %s %s", m.Time, o.paintKind(m.Type, m.From+" -> "+m.To+":"), m.Text)
	default:
		to := ""
		if m.To != broadcast {
			to = " -> " + m.To
		}
		return fmt.Sprintf("%s %s%s: %s", m.Time, o.paint(color.FgCyan, m.From), to, m.Text)
	}
}

func (o *Output) paintKind(kind, s string) string {
	switch kind {
	case kindStatus:
		return o.paint(color.FgYellow, s)
	case kindPrivate:
		return o.paint(color.FgMagenta, s)
	default:
		return s
	}
}

func (o *Output) paint(c color.Color, s string) string {
	if !o.colors {
		return s
	}
	return c.Render(s)
}
