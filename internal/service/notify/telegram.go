package notify

import (
	"context"
	"fmt"
	"html"

	xhttp "github.com/hislov/overdrive-bot/pkg/http"
	"github.com/hislov/overdrive-bot/pkg/logger"
	"github.com/hislov/overdrive-bot/pkg/util"
)

// Telegram message size cap, held below the API's 4096 limit to leave room
// for the <pre> wrapper. Applied after HTML escaping so entity expansion
// cannot push a message past the limit.
const maxChunkRunes = 3500

// Telegram delivers run reports to a chat as monospace blocks, splitting
// long reports into multiple messages.
type Telegram struct {
	http    *xhttp.Client
	apiBase string
	token   string
	chatID  string
	log     *logger.Logger
}

// NewTelegram creates a Telegram notifier.
func NewTelegram(httpClient *xhttp.Client, token, chatID string, lgr *logger.Logger) *Telegram {
	return &Telegram{
		http:    httpClient,
		apiBase: "https://api.telegram.org",
		token:   token,
		chatID:  chatID,
		log:     lgr,
	}
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send posts the report, chunked to fit Telegram's message limit. A failed
// chunk aborts the remaining ones.
func (t *Telegram) Send(ctx context.Context, report string) error {
	if t.token == "" || t.chatID == "" {
		return fmt.Errorf("telegram not configured")
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)
	chunks := util.ChunkText(html.EscapeString(report), maxChunkRunes)

	for i, chunk := range chunks {
		req := sendMessageRequest{
			ChatID:    t.chatID,
			Text:      "<pre>" + chunk + "</pre>",
			ParseMode: "HTML",
		}

		var resp sendMessageResponse
		if err := t.http.PostJSON(ctx, url, req, nil, &resp); err != nil {
			return fmt.Errorf("telegram send chunk %d/%d: %w", i+1, len(chunks), err)
		}
		if !resp.OK {
			return fmt.Errorf("telegram send chunk %d/%d: %s", i+1, len(chunks), resp.Description)
		}
	}

	t.log.Info("report delivered", logger.Int("chunks", len(chunks)))
	return nil
}
