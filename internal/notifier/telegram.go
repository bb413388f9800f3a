package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultAPIBase = "https://api.telegram.org"

	// Long-poll timeout for getUpdates, in seconds.
	pollTimeout = 30

	pollRetryDelay = 5 * time.Second
)

// Telegram sends alerts through the Telegram Bot API and long-polls
// getUpdates for remote commands. Only messages from the configured chat are
// dispatched.
type Telegram struct {
	token   string
	chatID  string
	apiBase string
	client  *http.Client
	log     *logrus.Entry

	retryDelay time.Duration

	mu       sync.RWMutex
	handlers map[string]CommandHandler
	offset   int64
}

// NewTelegram creates a Telegram notifier for a single fixed chat.
func NewTelegram(token, chatID string) *Telegram {
	return &Telegram{
		token:   token,
		chatID:  chatID,
		apiBase: defaultAPIBase,
		client: &http.Client{
			Timeout: (pollTimeout + 10) * time.Second,
		},
		log:        logrus.WithField("component", "notifier"),
		retryDelay: pollRetryDelay,
		handlers:   make(map[string]CommandHandler),
	}
}

// Notify delivers an alert to the configured chat. Delivery failures are
// logged and swallowed.
func (t *Telegram) Notify(text string) {
	resp, err := t.client.PostForm(t.methodURL("sendMessage"), url.Values{
		"chat_id": {t.chatID},
		"text":    {text},
	})
	if err != nil {
		t.log.Errorf("telegram send failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.log.Errorf("telegram send failed: %s", resp.Status)
	}
}

// Handle registers a command handler, e.g. Handle("start", fn) for /start.
func (t *Telegram) Handle(command string, handler CommandHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[strings.TrimPrefix(command, "/")] = handler
}

// Poll runs the getUpdates loop until the context is cancelled. It is meant
// to run on its own goroutine next to the trading loop.
func (t *Telegram) Poll(ctx context.Context) {
	t.log.Info("command poller started")

	for {
		select {
		case <-ctx.Done():
			t.log.Info("command poller stopped")
			return
		default:
		}

		updates, err := t.fetchUpdates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			t.log.Errorf("fetching updates failed: %v", err)
			select {
			case <-ctx.Done():
			case <-time.After(t.retryDelay):
			}
			continue
		}

		for _, update := range updates {
			t.dispatch(update)
		}
	}
}

type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

func (t *Telegram) fetchUpdates(ctx context.Context) ([]update, error) {
	t.mu.RLock()
	offset := t.offset
	t.mu.RUnlock()

	query := url.Values{
		"timeout": {strconv.Itoa(pollTimeout)},
	}
	if offset > 0 {
		query.Set("offset", strconv.FormatInt(offset, 10))
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		t.methodURL("getUpdates")+"?"+query.Encode(),
		nil,
	)
	if err != nil {
		return nil, err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var body struct {
		OK     bool     `json:"ok"`
		Result []update `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	if !body.OK {
		return nil, fmt.Errorf("telegram API returned ok=false")
	}

	if len(body.Result) > 0 {
		last := body.Result[len(body.Result)-1].UpdateID
		t.mu.Lock()
		t.offset = last + 1
		t.mu.Unlock()
	}

	return body.Result, nil
}

func (t *Telegram) dispatch(u update) {
	if u.Message == nil {
		return
	}
	if strconv.FormatInt(u.Message.Chat.ID, 10) != t.chatID {
		t.log.Warnf("ignoring message from unknown chat %d", u.Message.Chat.ID)
		return
	}

	command, ok := parseCommand(u.Message.Text)
	if !ok {
		return
	}

	t.mu.RLock()
	handler, found := t.handlers[command]
	t.mu.RUnlock()

	if !found {
		t.Notify(fmt.Sprintf("Unknown command /%s, try /help", command))
		return
	}

	t.log.Infof("handling /%s", command)
	t.Notify(handler())
}

// parseCommand extracts the bare command name from a message like
// "/status" or "/status@my_bot".
func parseCommand(text string) (string, bool) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", false
	}

	command := strings.TrimPrefix(fields[0], "/")
	if at := strings.Index(command, "@"); at >= 0 {
		command = command[:at]
	}
	return command, command != ""
}

func (t *Telegram) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", t.apiBase, t.token, method)
}
