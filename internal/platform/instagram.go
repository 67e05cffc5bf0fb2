package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/postloom/postloom/internal/transfer"
)

const (
	instagramMaxChars = 2200
	instagramGraphURL = "https://graph.instagram.com/v21.0"
)

// Length policy: captions over 2200 characters are truncated with a warning,
// matching the platform's own editor behaviour.
//
// Instagram pulls media by URL rather than accepting binary uploads, so
// stored references are resolved to presigned URLs instead of fetched.
type instagramAdapter struct {
	media  MediaStore
	client *http.Client
}

func NewInstagram(media MediaStore) Adapter {
	return &instagramAdapter{media: media, client: http.DefaultClient}
}

func (a *instagramAdapter) Platform() string {
	return "instagram"
}

func (a *instagramAdapter) Publish(ctx context.Context, content Content, cred Credential) (*PublishResult, error) {
	if len(content.Media) == 0 {
		return nil, Errorf(a.Platform(), "instagram requires at least one media item")
	}

	caption, warning := truncate(content.Text, instagramMaxChars)

	var containerID string
	var err error
	if len(content.Media) == 1 {
		containerID, err = a.createContainer(ctx, cred, map[string]any{
			"image_url":    "",
			"caption":      caption,
			"access_token": cred.AccessToken,
		}, content.Media[0])
	} else {
		containerID, err = a.createCarousel(ctx, cred, caption, content.Media)
	}
	if err != nil {
		return nil, err
	}

	publishedID, err := a.publishContainer(ctx, cred, containerID)
	if err != nil {
		return nil, err
	}

	return &PublishResult{PlatformPostID: publishedID, Warning: warning}, nil
}

func (a *instagramAdapter) createContainer(ctx context.Context, cred Credential, payload map[string]any, ref string) (string, error) {
	imageURL, err := a.media.ResolveURL(ctx, ref)
	if err != nil {
		return "", Errorf(a.Platform(), "error resolving media %s: %v", ref, err)
	}
	payload["image_url"] = imageURL

	return a.graphPost(ctx, fmt.Sprintf("%s/%s/media", instagramGraphURL, cred.AccountID), payload)
}

func (a *instagramAdapter) createCarousel(ctx context.Context, cred Credential, caption string, refs []string) (string, error) {
	children := make([]string, 0, len(refs))
	for _, ref := range refs {
		childID, err := a.createContainer(ctx, cred, map[string]any{
			"is_carousel_item": true,
			"access_token":     cred.AccessToken,
		}, ref)
		if err != nil {
			return "", err
		}
		children = append(children, childID)
	}

	return a.graphPost(ctx, fmt.Sprintf("%s/%s/media", instagramGraphURL, cred.AccountID), map[string]any{
		"media_type":   "CAROUSEL",
		"caption":      caption,
		"children":     children,
		"access_token": cred.AccessToken,
	})
}

func (a *instagramAdapter) publishContainer(ctx context.Context, cred Credential, containerID string) (string, error) {
	return a.graphPost(ctx, fmt.Sprintf("%s/%s/media_publish", instagramGraphURL, cred.AccountID), map[string]any{
		"creation_id":  containerID,
		"access_token": cred.AccessToken,
	})
}

func (a *instagramAdapter) graphPost(ctx context.Context, url string, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", Errorf(a.Platform(), "error marshalling payload: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return "", Errorf(a.Platform(), "error creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", Errorf(a.Platform(), "instagram request failed: %v", err)
	}
	defer resp.Body.Close()

	var result transfer.InstagramContainerResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", Errorf(a.Platform(), "error parsing instagram response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		if result.Error.Message != "" {
			return "", Errorf(a.Platform(), "instagram rejected request: %s", result.Error.Message)
		}
		return "", Errorf(a.Platform(), "instagram rejected request with status %d", resp.StatusCode)
	}
	if result.ID == "" {
		return "", Errorf(a.Platform(), "no id returned from instagram")
	}

	return result.ID, nil
}
