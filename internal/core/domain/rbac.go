package domain

// Channel is the tenancy unit permissions are granted over.
type Channel struct {
	ID    string
	Code  string
	Token string
}

// Role grants a set of permissions within a set of channels.
type Role struct {
	ID          string
	Code        string
	Description string
	Permissions []string
	Channels    []Channel
}

// CurrentUserChannel is the public view of the permissions a user holds in one channel.
type CurrentUserChannel struct {
	ID          string   `json:"id"`
	Token       string   `json:"token"`
	Code        string   `json:"code"`
	Permissions []string `json:"permissions"`
}

// CurrentUser is the subset of user data exposed to API clients after login.
type CurrentUser struct {
	ID         string               `json:"id"`
	Identifier string               `json:"identifier"`
	Channels   []CurrentUserChannel `json:"channels"`
}

// NewCurrentUser computes the public view of a user from its role grants.
// Permissions of roles sharing a channel are merged in order of first appearance.
func NewCurrentUser(user User) CurrentUser {
	channels := make([]CurrentUserChannel, 0)
	index := make(map[string]int)
	seen := make(map[string]map[string]struct{})

	for _, role := range user.Roles {
		for _, channel := range role.Channels {
			pos, ok := index[channel.ID]
			if !ok {
				pos = len(channels)
				index[channel.ID] = pos
				seen[channel.ID] = make(map[string]struct{})
				channels = append(channels, CurrentUserChannel{
					ID:          channel.ID,
					Token:       channel.Token,
					Code:        channel.Code,
					Permissions: make([]string, 0, len(role.Permissions)),
				})
			}
			for _, permission := range role.Permissions {
				if _, dup := seen[channel.ID][permission]; dup {
					continue
				}
				seen[channel.ID][permission] = struct{}{}
				channels[pos].Permissions = append(channels[pos].Permissions, permission)
			}
		}
	}

	return CurrentUser{
		ID:         user.ID,
		Identifier: user.Identifier,
		Channels:   channels,
	}
}
