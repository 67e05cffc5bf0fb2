package transfer

type LinkedinRegisterUploadRequest struct {
	RegisterUploadRequest LinkedinRegisterUpload `json:"registerUploadRequest"`
}

type LinkedinRegisterUpload struct {
	Recipes              []string                      `json:"recipes"`
	Owner                string                        `json:"owner"`
	ServiceRelationships []LinkedinServiceRelationship `json:"serviceRelationships"`
}

type LinkedinServiceRelationship struct {
	RelationshipType string `json:"relationshipType"`
	Identifier       string `json:"identifier"`
}

type LinkedinRegisterUploadResponse struct {
	Value struct {
		Asset           string `json:"asset"`
		UploadMechanism struct {
			MediaUploadHTTPRequest struct {
				UploadURL string            `json:"uploadUrl"`
				Headers   map[string]string `json:"headers"`
			} `json:"com.linkedin.digitalmedia.uploading.MediaUploadHttpRequest"`
		} `json:"uploadMechanism"`
	} `json:"value"`
}

type LinkedinShareText struct {
	Text string `json:"text"`
}

type LinkedinShareMedia struct {
	Status string `json:"status"`
	Media  string `json:"media"`
}

type LinkedinShareContent struct {
	ShareCommentary    LinkedinShareText    `json:"shareCommentary"`
	ShareMediaCategory string               `json:"shareMediaCategory"`
	Media              []LinkedinShareMedia `json:"media,omitempty"`
}

type LinkedinUGCPostRequest struct {
	Author          string `json:"author"`
	LifecycleState  string `json:"lifecycleState"`
	SpecificContent struct {
		ShareContent LinkedinShareContent `json:"com.linkedin.ugc.ShareContent"`
	} `json:"specificContent"`
	Visibility struct {
		MemberNetworkVisibility string `json:"com.linkedin.ugc.MemberNetworkVisibility"`
	} `json:"visibility"`
}

type LinkedinUGCPostResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}
