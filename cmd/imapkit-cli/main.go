// Command imapkit-cli is a terminal mailbox browser exercising the public
// imapkit API: it loads an account fixture, connects, opens the fixture's
// folder read-only, and shows a scrollable list of its messages.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/oakmoss/imapkit"
	"github.com/oakmoss/imapkit/internal/wire"
)

// accountFixture is a single IMAP account read from a YAML fixture file,
// separate from the viper-backed config package: this is the lightweight
// shape a test harness or demo script hands the CLI directly.
type accountFixture struct {
	Name       string `yaml:"name"`
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Encryption string `yaml:"encryption"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	Folder     string `yaml:"folder"`
}

func loadFixture(path string) (*accountFixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixture: %w", err)
	}
	var f accountFixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing fixture: %w", err)
	}
	if f.Folder == "" {
		f.Folder = "INBOX"
	}
	return &f, nil
}

func encryptionFromString(s string) wire.Encryption {
	switch strings.ToLower(s) {
	case "none":
		return wire.EncryptionNone
	case "starttls":
		return wire.EncryptionStartTLS
	default:
		return wire.EncryptionSSL
	}
}

func main() {
	fixturePath := flag.String("account", "", "path to an account fixture YAML file")
	flag.Parse()

	if *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "usage: imapkit-cli -account accounts.yaml")
		os.Exit(2)
	}

	fixture, err := loadFixture(*fixturePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "imapkit-cli:", err)
		os.Exit(1)
	}

	client := imapkit.New(imapkit.ClientOptions{
		Host:         fixture.Host,
		Port:         fixture.Port,
		Encryption:   encryptionFromString(fixture.Encryption),
		ValidateCert: true,
		TLSConfig:    &tls.Config{MinVersion: tls.VersionTLS12},
		Auth:         imapkit.AuthLogin,
		Username:     fixture.Username,
		Password:     fixture.Password,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "imapkit-cli: connect:", err)
		os.Exit(1)
	}
	defer client.Disconnect()

	if err := client.Authenticate(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "imapkit-cli: authenticate:", err)
		os.Exit(1)
	}

	folder, err := client.OpenFolder(ctx, fixture.Folder, true, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, "imapkit-cli: open folder:", err)
		os.Exit(1)
	}

	outcome, err := folder.GetMessages().WithBody().WithRaw().PageSize(100).Get(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "imapkit-cli: fetch:", err)
		os.Exit(1)
	}

	p := tea.NewProgram(newModel(fixture.Folder, outcome.Messages), tea.WithOutput(os.Stdout))
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "imapkit-cli: ui:", err)
		os.Exit(1)
	}
}

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))

// messageItem adapts *imapkit.Message to bubbles/list.Item.
type messageItem struct {
	msg *imapkit.Message
}

func (m messageItem) FilterValue() string { return m.msg.Subject }

func (m messageItem) Title() string {
	subject := m.msg.Subject
	if subject == "" {
		subject = "(no subject)"
	}
	return subject
}

func (m messageItem) Description() string {
	from := "(unknown sender)"
	if len(m.msg.From) > 0 {
		from = m.msg.From[0].String()
	}
	when := "unknown date"
	if m.msg.HasDate {
		when = humanize.Time(m.msg.Date)
	}
	size := humanize.Bytes(uint64(len(m.msg.Raw)))
	return fmt.Sprintf("%s | %s | %s | uid %d", from, when, size, m.msg.UID)
}

type model struct {
	list list.Model
}

func newModel(folder string, messages []*imapkit.Message) model {
	items := make([]list.Item, len(messages))
	for i, msg := range messages {
		items[i] = messageItem{msg: msg}
	}
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = folder
	l.Styles.Title = headerStyle
	l.SetShowHelp(true)
	return model{list: l}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height)
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m model) View() string {
	return m.list.View()
}
