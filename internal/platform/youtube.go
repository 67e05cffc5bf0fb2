package platform

import (
	"bytes"
	"context"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const youtubeMaxTitleChars = 100

// Length policy: a title over 100 characters is an error. YouTube has no
// practical description limit, so the caption is passed through untouched.
type youtubeAdapter struct {
	media MediaStore
}

func NewYoutube(media MediaStore) Adapter {
	return &youtubeAdapter{media: media}
}

func (a *youtubeAdapter) Platform() string {
	return "youtube"
}

func (a *youtubeAdapter) Publish(ctx context.Context, content Content, cred Credential) (*PublishResult, error) {
	if len(content.Media) == 0 {
		return nil, Errorf(a.Platform(), "youtube requires a video to upload")
	}
	if content.Title == "" {
		return nil, Errorf(a.Platform(), "youtube requires a title")
	}
	if len([]rune(content.Title)) > youtubeMaxTitleChars {
		return nil, Errorf(a.Platform(), "title exceeds youtube's %d character limit", youtubeMaxTitleChars)
	}

	token := &oauth2.Token{AccessToken: cred.AccessToken}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
	service, err := youtube.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, Errorf(a.Platform(), "error creating youtube service: %v", err)
	}

	data, _, err := a.media.Fetch(ctx, content.Media[0])
	if err != nil {
		return nil, Errorf(a.Platform(), "error fetching video %s: %v", content.Media[0], err)
	}

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       content.Title,
			Description: content.Text,
			CategoryId:  "22",
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: "public",
		},
	}

	call := service.Videos.Insert([]string{"snippet", "status"}, video)
	response, err := call.Media(bytes.NewReader(data)).Context(ctx).Do()
	if err != nil {
		return nil, Errorf(a.Platform(), "youtube upload failed: %v", err)
	}

	return &PublishResult{PlatformPostID: response.Id}, nil
}
