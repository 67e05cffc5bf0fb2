package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/postloom/postloom/internal/transfer"
)

const (
	twitterMaxChars  = 280
	tweetURL         = "https://api.twitter.com/2/tweets"
	twitterUploadURL = "https://upload.twitter.com/1.1/media/upload.json"
)

// Length policy: text over the 280-character limit is truncated and the
// result carries a warning. Tweets are throwaway-short by nature, so losing
// the tail beats failing the whole post.
type twitterAdapter struct {
	media     MediaStore
	client    *http.Client
	tweetURL  string
	uploadURL string
}

func NewTwitter(media MediaStore) Adapter {
	return &twitterAdapter{
		media:     media,
		client:    http.DefaultClient,
		tweetURL:  tweetURL,
		uploadURL: twitterUploadURL,
	}
}

func (a *twitterAdapter) Platform() string {
	return "twitter"
}

func (a *twitterAdapter) Publish(ctx context.Context, content Content, cred Credential) (*PublishResult, error) {
	text, warning := truncate(content.Text, twitterMaxChars)

	var mediaIDs []string
	for _, ref := range content.Media {
		mediaID, err := a.uploadMedia(ctx, ref, cred.AccessToken)
		if err != nil {
			return nil, err
		}
		mediaIDs = append(mediaIDs, mediaID)
	}

	tweet := transfer.TweetRequest{Text: text}
	if len(mediaIDs) > 0 {
		tweet.Media = &transfer.TweetMedia{MediaIDs: mediaIDs}
	}

	body, err := json.Marshal(tweet)
	if err != nil {
		return nil, Errorf(a.Platform(), "error marshalling tweet: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tweetURL, bytes.NewBuffer(body))
	if err != nil {
		return nil, Errorf(a.Platform(), "error creating request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, Errorf(a.Platform(), "twitter request failed: %v", err)
	}
	defer resp.Body.Close()

	// The error body is not guaranteed to be JSON (proxies answer with HTML),
	// so the status decides first and the detail is best-effort.
	if resp.StatusCode != http.StatusCreated {
		var failure transfer.TweetResponse
		if err := json.NewDecoder(resp.Body).Decode(&failure); err == nil && failure.Detail != "" {
			return nil, Errorf(a.Platform(), "twitter rejected tweet: %s", failure.Detail)
		}
		return nil, Errorf(a.Platform(), "twitter rejected tweet with status %d", resp.StatusCode)
	}

	var result transfer.TweetResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, Errorf(a.Platform(), "error parsing twitter response: %v", err)
	}
	if result.Data.ID == "" {
		return nil, Errorf(a.Platform(), "no tweet id returned from twitter")
	}

	return &PublishResult{
		PlatformPostID: result.Data.ID,
		Warning:        warning,
		TierHint:       resp.Header.Get("x-access-level"),
	}, nil
}

func (a *twitterAdapter) uploadMedia(ctx context.Context, ref, accessToken string) (string, error) {
	// the upload endpoint sniffs content type itself
	data, _, err := a.media.Fetch(ctx, ref)
	if err != nil {
		return "", Errorf(a.Platform(), "error fetching media %s: %v", ref, err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("media", "media")
	if err != nil {
		return "", Errorf(a.Platform(), "error building upload form: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", Errorf(a.Platform(), "error building upload form: %v", err)
	}
	if err := writer.Close(); err != nil {
		return "", Errorf(a.Platform(), "error building upload form: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.uploadURL, &buf)
	if err != nil {
		return "", Errorf(a.Platform(), "error creating upload request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := a.client.Do(req)
	if err != nil {
		return "", Errorf(a.Platform(), "twitter media upload failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", Errorf(a.Platform(), "twitter media upload returned status %d: %s", resp.StatusCode, respBody)
	}

	var result transfer.TwitterMediaUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", Errorf(a.Platform(), "error parsing upload response: %v", err)
	}
	if result.MediaIDString == "" {
		return "", Errorf(a.Platform(), "no media id returned from twitter upload")
	}

	return result.MediaIDString, nil
}
