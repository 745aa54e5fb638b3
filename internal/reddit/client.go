// Package reddit — client.go реализует REST-клиент Reddit API.
// Авторизация по password grant (script-приложение), все запросы идут
// через retryablehttp: кратковременные сетевые сбои ретраятся на месте,
// длительные — отдаются наверх и обрабатываются бэкоффом консьюмера.
package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	log "github.com/sirupsen/logrus"
)

const (
	authBaseURL  = "https://www.reddit.com"
	oauthBaseURL = "https://oauth.reddit.com"
)

// Credentials — данные script-приложения Reddit.
type Credentials struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	UserAgent    string
}

// Client — клиент Reddit API, привязанный к одному сабреддиту.
type Client struct {
	http      *retryablehttp.Client
	creds     Credentials
	subreddit string

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

// NewClient создаёт клиент для работы с сабреддитом subreddit.
func NewClient(creds Credentials, subreddit string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 1 * time.Second
	rc.RetryWaitMax = 10 * time.Second
	rc.Logger = nil

	return &Client{
		http:      rc,
		creds:     creds,
		subreddit: subreddit,
	}
}

// Me возвращает имя аккаунта бота.
func (c *Client) Me() string { return c.creds.Username }

// Subreddit возвращает имя обслуживаемого сабреддита.
func (c *Client) Subreddit() string { return c.subreddit }

// APIError — ответ платформы с неуспешным HTTP-статусом.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("reddit api: статус %d: %s", e.StatusCode, e.Body)
}

// IsTransient сообщает, стоит ли считать ошибку временной
// (серверная ошибка или троттлинг — подождать и продолжить).
// Сетевые ошибки транспорта тоже временные.
func IsTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests
	}
	// ошибки уровня транспорта (обрыв соединения, таймаут)
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// ensureToken получает или обновляет OAuth-токен.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExp) {
		return c.token, nil
	}

	form := url.Values{
		"grant_type": {"password"},
		"username":   {c.creds.Username},
		"password":   {c.creds.Password},
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost,
		authBaseURL+"/api/v1/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.creds.ClientID, c.creds.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.creds.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("запрос токена: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("разбор ответа токена: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("пустой access_token (неверные креды?)")
	}

	c.token = tok.AccessToken
	// обновляем чуть раньше фактического истечения
	c.tokenExp = time.Now().Add(time.Duration(tok.ExpiresIn-60) * time.Second)
	log.Debug("OAuth-токен Reddit обновлён")
	return c.token, nil
}

// do выполняет авторизованный запрос к oauth.reddit.com.
// Для GET параметры уходят в query string, для POST — формой.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, out any) error {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return err
	}

	fullURL := oauthBaseURL + path
	var body io.Reader
	if method == http.MethodGet {
		if len(params) > 0 {
			fullURL += "?" + params.Encode()
		}
	} else if params != nil {
		body = strings.NewReader(params.Encode())
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "bearer "+token)
	req.Header.Set("User-Agent", c.creds.UserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// протухший токен — сбрасываем, следующий вызов получит новый
		if resp.StatusCode == http.StatusUnauthorized {
			c.mu.Lock()
			c.token = ""
			c.mu.Unlock()
		}
		return &APIError{StatusCode: resp.StatusCode, Body: truncate(string(raw), 300)}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("разбор ответа %s: %w", path, err)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// --- JSON-обёртки Reddit API ---

type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type listing struct {
	Data struct {
		Children []thing `json:"children"`
	} `json:"data"`
}

type commentData struct {
	ID              string  `json:"id"`
	Body            string  `json:"body"`
	Author          string  `json:"author"`
	AuthorFlairText string  `json:"author_flair_text"`
	CreatedUTC      float64 `json:"created_utc"`
	Permalink       string  `json:"permalink"`
	ParentID        string  `json:"parent_id"`
	LinkID          string  `json:"link_id"`
}

func (d *commentData) toComment() Comment {
	author := d.Author
	if author == deletedAuthor {
		author = ""
	}
	return Comment{
		ID:              d.ID,
		Body:            d.Body,
		Author:          author,
		AuthorFlairText: d.AuthorFlairText,
		CreatedUTC:      int64(d.CreatedUTC),
		Permalink:       d.Permalink,
		ParentID:        d.ParentID,
		SubmissionID:    strings.TrimPrefix(d.LinkID, "t3_"),
		Removed:         d.Body == removedBody || d.Author == deletedAuthor,
	}
}

type linkData struct {
	ID                string  `json:"id"`
	Author            string  `json:"author"`
	Title             string  `json:"title"`
	LinkFlairText     string  `json:"link_flair_text"`
	CreatedUTC        float64 `json:"created_utc"`
	Permalink         string  `json:"permalink"`
	Locked            bool    `json:"locked"`
	RemovedByCategory string  `json:"removed_by_category"`
}

func (d *linkData) toSubmission() Submission {
	author := d.Author
	if author == deletedAuthor {
		author = ""
	}
	return Submission{
		ID:            d.ID,
		Author:        author,
		Title:         d.Title,
		CategoryFlair: d.LinkFlairText,
		CreatedUTC:    int64(d.CreatedUTC),
		Permalink:     d.Permalink,
		Locked:        d.Locked,
		Removed:       d.RemovedByCategory != "" || d.Author == deletedAuthor,
	}
}

// --- Операции API ---

// Reply отвечает на вещь (комментарий или пост) от имени бота,
// затем помечает ответ модераторским и закрывает его от ответов.
// Нюанс из практики: упавшие distinguish/lock не считаем фатальными.
func (c *Client) Reply(ctx context.Context, parentFullname, text string) error {
	var resp struct {
		JSON struct {
			Data struct {
				Things []thing `json:"things"`
			} `json:"data"`
		} `json:"json"`
	}
	err := c.do(ctx, http.MethodPost, "/api/comment", url.Values{
		"api_type": {"json"},
		"thing_id": {parentFullname},
		"text":     {text},
	}, &resp)
	if err != nil {
		return fmt.Errorf("ответ на %s: %w", parentFullname, err)
	}

	if len(resp.JSON.Data.Things) == 0 {
		return nil
	}
	var posted commentData
	if err := json.Unmarshal(resp.JSON.Data.Things[0].Data, &posted); err != nil {
		return nil
	}
	name := "t1_" + posted.ID

	if err := c.do(ctx, http.MethodPost, "/api/distinguish", url.Values{
		"api_type": {"json"}, "how": {"yes"}, "id": {name},
	}, nil); err != nil {
		log.WithError(err).WithField("id", name).Warn("Не удалось выделить ответ бота")
	}
	if err := c.do(ctx, http.MethodPost, "/api/lock", url.Values{"id": {name}}, nil); err != nil {
		log.WithError(err).WithField("id", name).Warn("Не удалось закрыть ответ бота")
	}
	return nil
}

// UserFlair возвращает текст флаира пользователя ("" — флаира нет).
func (c *Client) UserFlair(ctx context.Context, user string) (string, error) {
	var resp struct {
		Users []struct {
			User      string `json:"user"`
			FlairText string `json:"flair_text"`
		} `json:"users"`
	}
	err := c.do(ctx, http.MethodGet, "/r/"+c.subreddit+"/api/flairlist",
		url.Values{"name": {user}}, &resp)
	if err != nil {
		return "", fmt.Errorf("флаир %s: %w", user, err)
	}
	for _, u := range resp.Users {
		if strings.EqualFold(u.User, user) {
			return u.FlairText, nil
		}
	}
	return "", nil
}

// SetUserFlair устанавливает флаир пользователя по шаблону.
func (c *Client) SetUserFlair(ctx context.Context, user, text, templateID string) error {
	err := c.do(ctx, http.MethodPost, "/r/"+c.subreddit+"/api/selectflair", url.Values{
		"api_type":          {"json"},
		"name":              {user},
		"text":              {text},
		"flair_template_id": {templateID},
	}, nil)
	if err != nil {
		return fmt.Errorf("установка флаира %s: %w", user, err)
	}
	return nil
}

// SetSubmissionFlair устанавливает флаир поста по шаблону.
func (c *Client) SetSubmissionFlair(ctx context.Context, submissionID, templateID string) error {
	err := c.do(ctx, http.MethodPost, "/r/"+c.subreddit+"/api/selectflair", url.Values{
		"api_type":          {"json"},
		"link":              {"t3_" + submissionID},
		"flair_template_id": {templateID},
	}, nil)
	if err != nil {
		return fmt.Errorf("флаир поста %s: %w", submissionID, err)
	}
	return nil
}

// LockSubmission закрывает пост от новых комментариев.
func (c *Client) LockSubmission(ctx context.Context, submissionID string) error {
	err := c.do(ctx, http.MethodPost, "/api/lock",
		url.Values{"id": {"t3_" + submissionID}}, nil)
	if err != nil {
		return fmt.Errorf("блокировка поста %s: %w", submissionID, err)
	}
	return nil
}

// Moderators возвращает список модераторов сабреддита.
func (c *Client) Moderators(ctx context.Context) ([]string, error) {
	var resp struct {
		Data struct {
			Children []struct {
				Name string `json:"name"`
			} `json:"children"`
		} `json:"data"`
	}
	err := c.do(ctx, http.MethodGet, "/r/"+c.subreddit+"/about/moderators", nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("список модераторов: %w", err)
	}
	names := make([]string, 0, len(resp.Data.Children))
	for _, m := range resp.Data.Children {
		names = append(names, m.Name)
	}
	return names, nil
}

// WikiPage возвращает markdown-содержимое wiki-страницы сабреддита.
func (c *Client) WikiPage(ctx context.Context, page string) (string, error) {
	var resp struct {
		Data struct {
			ContentMD string `json:"content_md"`
		} `json:"data"`
	}
	err := c.do(ctx, http.MethodGet, "/r/"+c.subreddit+"/wiki/"+page, nil, &resp)
	if err != nil {
		return "", fmt.Errorf("wiki-страница %s: %w", page, err)
	}
	return resp.Data.ContentMD, nil
}

// SubmitSelfPost публикует текстовый пост и возвращает его permalink.
// Используется для суточной выгрузки логов в профильный сабреддит бота.
func (c *Client) SubmitSelfPost(ctx context.Context, subreddit, title, text string) (string, error) {
	var resp struct {
		JSON struct {
			Data struct {
				URL string `json:"url"`
			} `json:"data"`
		} `json:"json"`
	}
	err := c.do(ctx, http.MethodPost, "/api/submit", url.Values{
		"api_type": {"json"},
		"sr":       {subreddit},
		"kind":     {"self"},
		"title":    {title},
		"text":     {text},
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("публикация поста: %w", err)
	}
	return resp.JSON.Data.URL, nil
}

// Comment возвращает снимок комментария по ID.
func (c *Client) Comment(ctx context.Context, id string) (*Comment, error) {
	var resp listing
	err := c.do(ctx, http.MethodGet, "/api/info", url.Values{"id": {"t1_" + id}}, &resp)
	if err != nil {
		return nil, fmt.Errorf("комментарий %s: %w", id, err)
	}
	if len(resp.Data.Children) == 0 {
		return nil, fmt.Errorf("комментарий %s не найден", id)
	}
	var d commentData
	if err := json.Unmarshal(resp.Data.Children[0].Data, &d); err != nil {
		return nil, fmt.Errorf("разбор комментария %s: %w", id, err)
	}
	cm := d.toComment()
	return &cm, nil
}

// Submission возвращает снимок поста по ID.
func (c *Client) Submission(ctx context.Context, id string) (*Submission, error) {
	var resp listing
	err := c.do(ctx, http.MethodGet, "/api/info", url.Values{"id": {"t3_" + id}}, &resp)
	if err != nil {
		return nil, fmt.Errorf("пост %s: %w", id, err)
	}
	if len(resp.Data.Children) == 0 {
		return nil, fmt.Errorf("пост %s не найден", id)
	}
	var d linkData
	if err := json.Unmarshal(resp.Data.Children[0].Data, &d); err != nil {
		return nil, fmt.Errorf("разбор поста %s: %w", id, err)
	}
	sm := d.toSubmission()
	return &sm, nil
}

// NewComments возвращает свежие комментарии сабреддита (новые первыми).
func (c *Client) NewComments(ctx context.Context, limit int) ([]Comment, error) {
	var resp listing
	err := c.do(ctx, http.MethodGet, "/r/"+c.subreddit+"/comments",
		url.Values{"limit": {strconv.Itoa(limit)}}, &resp)
	if err != nil {
		return nil, fmt.Errorf("лента комментариев: %w", err)
	}
	out := make([]Comment, 0, len(resp.Data.Children))
	for _, ch := range resp.Data.Children {
		var d commentData
		if err := json.Unmarshal(ch.Data, &d); err != nil {
			continue
		}
		out = append(out, d.toComment())
	}
	return out, nil
}
