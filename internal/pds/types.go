package pds

// Repo is one entry from com.atproto.sync.listRepos.
type Repo struct {
	DID    string `json:"did"`
	Head   string `json:"head"`
	Rev    string `json:"rev"`
	Active bool   `json:"active"`
}

// AccountInfo is the admin view of a single account.
type AccountInfo struct {
	DID       string `json:"did"`
	Handle    string `json:"handle"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt"`
}

// Account is a repo enriched with admin account info for the dashboard.
// Fields the PDS could not supply are "unknown", never empty.
type Account struct {
	Repo
	Handle    string `json:"handle"`
	Email     string `json:"email"`
	IndexedAt string `json:"indexedAt"`
}

type listReposResponse struct {
	Cursor string `json:"cursor"`
	Repos  []Repo `json:"repos"`
}

type accountInfosResponse struct {
	Infos []AccountInfo `json:"infos"`
}

// repoRef is the subject of an updateSubjectStatus call.
type repoRef struct {
	Type string `json:"$type"`
	DID  string `json:"did"`
}

type takedownState struct {
	Applied bool   `json:"applied"`
	Ref     string `json:"ref,omitempty"`
}

type subjectStatusRequest struct {
	Subject  repoRef       `json:"subject"`
	Takedown takedownState `json:"takedown"`
}
