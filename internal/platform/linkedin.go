package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/postloom/postloom/internal/transfer"
)

const (
	linkedinMaxChars    = 3000
	linkedinAssetsURL   = "https://api.linkedin.com/v2/assets?action=registerUpload"
	linkedinUGCPostsURL = "https://api.linkedin.com/v2/ugcPosts"
)

// Length policy: commentary over the 3000-character limit is an error, not a
// truncation. LinkedIn posts are long-form copy the user wrote deliberately;
// silently cutting it would publish something they never approved.
type linkedinAdapter struct {
	media  MediaStore
	client *http.Client
}

func NewLinkedin(media MediaStore) Adapter {
	return &linkedinAdapter{media: media, client: http.DefaultClient}
}

func (a *linkedinAdapter) Platform() string {
	return "linkedin"
}

func (a *linkedinAdapter) Publish(ctx context.Context, content Content, cred Credential) (*PublishResult, error) {
	if len([]rune(content.Text)) > linkedinMaxChars {
		return nil, Errorf(a.Platform(), "content exceeds linkedin's %d character limit", linkedinMaxChars)
	}

	author := cred.AccountID
	if !strings.HasPrefix(author, "urn:") {
		author = "urn:li:person:" + author
	}

	var assets []string
	for _, ref := range content.Media {
		asset, err := a.uploadMedia(ctx, ref, author, cred.AccessToken)
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}

	share := transfer.LinkedinShareContent{
		ShareCommentary:    transfer.LinkedinShareText{Text: content.Text},
		ShareMediaCategory: "NONE",
	}
	for _, asset := range assets {
		share.Media = append(share.Media, transfer.LinkedinShareMedia{Status: "READY", Media: asset})
	}
	if len(assets) > 0 {
		share.ShareMediaCategory = "IMAGE"
	}

	post := transfer.LinkedinUGCPostRequest{
		Author:         author,
		LifecycleState: "PUBLISHED",
	}
	post.SpecificContent.ShareContent = share
	post.Visibility.MemberNetworkVisibility = "PUBLIC"

	body, err := json.Marshal(post)
	if err != nil {
		return nil, Errorf(a.Platform(), "error marshalling ugc post: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, linkedinUGCPostsURL, bytes.NewBuffer(body))
	if err != nil {
		return nil, Errorf(a.Platform(), "error creating request: %v", err)
	}
	a.setHeaders(req, cred.AccessToken)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, Errorf(a.Platform(), "linkedin request failed: %v", err)
	}
	defer resp.Body.Close()

	var result transfer.LinkedinUGCPostResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil && err != io.EOF {
		return nil, Errorf(a.Platform(), "error parsing linkedin response: %v", err)
	}

	if resp.StatusCode != http.StatusCreated {
		if result.Message != "" {
			return nil, Errorf(a.Platform(), "linkedin rejected post: %s", result.Message)
		}
		return nil, Errorf(a.Platform(), "linkedin rejected post with status %d", resp.StatusCode)
	}

	postID := resp.Header.Get("X-RestLi-Id")
	if postID == "" {
		postID = result.ID
	}
	if postID == "" {
		return nil, Errorf(a.Platform(), "no post id returned from linkedin")
	}

	return &PublishResult{PlatformPostID: postID}, nil
}

// uploadMedia runs LinkedIn's three-step sequence: register the upload, PUT
// the binary to the returned URL, reference the asset URN in the post.
func (a *linkedinAdapter) uploadMedia(ctx context.Context, ref, author, accessToken string) (string, error) {
	register := transfer.LinkedinRegisterUploadRequest{
		RegisterUploadRequest: transfer.LinkedinRegisterUpload{
			Recipes: []string{"urn:li:digitalmediaRecipe:feedshare-image"},
			Owner:   author,
			ServiceRelationships: []transfer.LinkedinServiceRelationship{
				{RelationshipType: "OWNER", Identifier: "urn:li:userGeneratedContent"},
			},
		},
	}

	body, err := json.Marshal(register)
	if err != nil {
		return "", Errorf(a.Platform(), "error marshalling register upload: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, linkedinAssetsURL, bytes.NewBuffer(body))
	if err != nil {
		return "", Errorf(a.Platform(), "error creating register request: %v", err)
	}
	a.setHeaders(req, accessToken)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", Errorf(a.Platform(), "linkedin register upload failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", Errorf(a.Platform(), "linkedin register upload returned status %d: %s", resp.StatusCode, respBody)
	}

	var registered transfer.LinkedinRegisterUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&registered); err != nil {
		return "", Errorf(a.Platform(), "error parsing register response: %v", err)
	}

	uploadURL := registered.Value.UploadMechanism.MediaUploadHTTPRequest.UploadURL
	asset := registered.Value.Asset
	if uploadURL == "" || asset == "" {
		return "", Errorf(a.Platform(), "linkedin register upload returned no upload target")
	}

	data, _, err := a.media.Fetch(ctx, ref)
	if err != nil {
		return "", Errorf(a.Platform(), "error fetching media %s: %v", ref, err)
	}

	put, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
	if err != nil {
		return "", Errorf(a.Platform(), "error creating upload request: %v", err)
	}
	put.Header.Set("Authorization", "Bearer "+accessToken)

	uploadResp, err := a.client.Do(put)
	if err != nil {
		return "", Errorf(a.Platform(), "linkedin binary upload failed: %v", err)
	}
	defer uploadResp.Body.Close()

	if uploadResp.StatusCode != http.StatusCreated && uploadResp.StatusCode != http.StatusOK {
		return "", Errorf(a.Platform(), "linkedin binary upload returned status %d", uploadResp.StatusCode)
	}

	return asset, nil
}

func (a *linkedinAdapter) setHeaders(req *http.Request, accessToken string) {
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")
}
