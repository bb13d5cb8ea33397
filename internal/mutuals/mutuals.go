// Package mutuals finds accounts that both follow and are followed by the
// archive owner, and enriches them through an external account-lookup CLI.
package mutuals

import (
	"encoding/json"
	"errors"
	"os"
	"sort"
)

type relationshipArchive struct {
	Following []struct {
		Following struct {
			AccountID string `json:"accountId"`
		} `json:"following"`
	} `json:"following"`
	Follower []struct {
		Follower struct {
			AccountID string `json:"accountId"`
		} `json:"follower"`
	} `json:"follower"`
}

// ExtractMutualIDs parses the archive's relationship sections and returns
// the sorted intersection of following and follower account ids.
func ExtractMutualIDs(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var arch relationshipArchive
	if err := json.Unmarshal(b, &arch); err != nil {
		return nil, err
	}
	if len(arch.Following) == 0 && len(arch.Follower) == 0 {
		return nil, errors.New("archive has no following/follower sections")
	}
	following := make(map[string]struct{}, len(arch.Following))
	for _, f := range arch.Following {
		if f.Following.AccountID != "" {
			following[f.Following.AccountID] = struct{}{}
		}
	}
	var mutual []string
	seen := make(map[string]struct{})
	for _, f := range arch.Follower {
		id := f.Follower.AccountID
		if id == "" {
			continue
		}
		if _, ok := following[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		mutual = append(mutual, id)
	}
	sort.Strings(mutual)
	return mutual, nil
}
