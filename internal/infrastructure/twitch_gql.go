package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/twitch-vod-go/internal/domain"
)

// TwitchClient talks to the public GraphQL endpoint using the web
// player's client identifier. It serves the metadata query for manifest
// synthesis and the paginated comments query for chat export.
type TwitchClient struct {
	endpoint string
	clientID string
	client   *http.Client
	log      *zap.Logger
}

// NewTwitchClient creates a GraphQL client
func NewTwitchClient(cfg *domain.TwitchConfig, client *http.Client, log *zap.Logger) *TwitchClient {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &TwitchClient{
		endpoint: cfg.GQLEndpoint,
		clientID: cfg.ClientID,
		client:   client,
		log:      log,
	}
}

type gqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type metadataResponse struct {
	Data struct {
		Video *struct {
			BroadcastType   string `json:"broadcastType"`
			CreatedAt       string `json:"createdAt"`
			SeekPreviewsURL string `json:"seekPreviewsURL"`
			Title           string `json:"title"`
			LengthSeconds   int    `json:"lengthSeconds"`
			Owner           struct {
				Login string `json:"login"`
			} `json:"owner"`
		} `json:"video"`
	} `json:"data"`
}

// VideoMetadata fetches the metadata needed for manifest synthesis.
// A missing data or video object is domain.ErrNoMetadata.
func (c *TwitchClient) VideoMetadata(ctx context.Context, vodID string) (*domain.VodMetadata, error) {
	query := fmt.Sprintf(`query { video(id: %q) { broadcastType, createdAt, seekPreviewsURL, title, lengthSeconds, owner { login } }}`, vodID)

	var out metadataResponse
	if err := c.post(ctx, gqlRequest{Query: query}, &out); err != nil {
		return nil, fmt.Errorf("metadata query: %w", err)
	}
	if out.Data.Video == nil {
		return nil, domain.ErrNoMetadata
	}

	v := out.Data.Video
	createdAt, err := time.Parse(time.RFC3339, v.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid createdAt %q: %w", v.CreatedAt, err)
	}

	return &domain.VodMetadata{
		VodID:           vodID,
		BroadcastType:   domain.BroadcastType(strings.ToLower(v.BroadcastType)),
		CreatedAt:       createdAt,
		OwnerLogin:      v.Owner.Login,
		Title:           v.Title,
		LengthSeconds:   v.LengthSeconds,
		SeekPreviewsURL: v.SeekPreviewsURL,
	}, nil
}

// ChatMessage is one chat replay message with its VOD time offset
type ChatMessage struct {
	OffsetSeconds int
	Username      string
	UserColor     string
	Text          string
}

type commentsResponse struct {
	Data struct {
		Video *struct {
			Comments *struct {
				Edges []struct {
					Cursor string `json:"cursor"`
					Node   struct {
						ContentOffsetSeconds int `json:"contentOffsetSeconds"`
						Commenter            *struct {
							Login       string `json:"login"`
							DisplayName string `json:"displayName"`
						} `json:"commenter"`
						Message struct {
							UserColor string `json:"userColor"`
							Fragments []struct {
								Text string `json:"text"`
							} `json:"fragments"`
						} `json:"message"`
					} `json:"node"`
				} `json:"edges"`
				PageInfo struct {
					HasNextPage bool `json:"hasNextPage"`
				} `json:"pageInfo"`
			} `json:"comments"`
		} `json:"video"`
	} `json:"data"`
}

const chatCommentsQuery = `
query VideoComments($videoID: ID!, $cursor: Cursor) {
  video(id: $videoID) {
    comments(first: 100, after: $cursor) {
      edges {
        cursor
        node {
          contentOffsetSeconds
          commenter { login displayName }
          message {
            userColor
            fragments { text }
          }
        }
      }
      pageInfo { hasNextPage }
    }
  }
}`

// DownloadChat retrieves the full chat replay, paginating by cursor with
// a short delay between pages to stay under the origin's rate limits.
func (c *TwitchClient) DownloadChat(ctx context.Context, vodID string) ([]ChatMessage, error) {
	var messages []ChatMessage
	var cursor string

	for {
		vars := map[string]interface{}{"videoID": vodID}
		if cursor != "" {
			vars["cursor"] = cursor
		}

		var out commentsResponse
		if err := c.post(ctx, gqlRequest{Query: chatCommentsQuery, Variables: vars}, &out); err != nil {
			return nil, fmt.Errorf("chat comments query: %w", err)
		}
		if out.Data.Video == nil || out.Data.Video.Comments == nil {
			break
		}

		edges := out.Data.Video.Comments.Edges
		if len(edges) == 0 {
			break
		}

		for _, edge := range edges {
			node := edge.Node
			username := "Unknown"
			if node.Commenter != nil {
				if node.Commenter.DisplayName != "" {
					username = node.Commenter.DisplayName
				} else if node.Commenter.Login != "" {
					username = node.Commenter.Login
				}
			}
			var text string
			for _, frag := range node.Message.Fragments {
				text += frag.Text
			}
			messages = append(messages, ChatMessage{
				OffsetSeconds: node.ContentOffsetSeconds,
				Username:      username,
				UserColor:     node.Message.UserColor,
				Text:          text,
			})
		}

		cursor = edges[len(edges)-1].Cursor
		if !out.Data.Video.Comments.PageInfo.HasNextPage || cursor == "" {
			break
		}

		select {
		case <-time.After(100 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if c.log != nil {
		c.log.Info("chat replay downloaded",
			zap.String("vod_id", vodID),
			zap.Int("messages", len(messages)))
	}
	return messages, nil
}

func (c *TwitchClient) post(ctx context.Context, body gqlRequest, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Client-Id", c.clientID)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from GraphQL endpoint", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
