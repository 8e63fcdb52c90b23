package models

import (
	"crypto/rand"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Workspace struct {
	ID            string    `gorm:"primaryKey" json:"id"`
	OrgID         string    `gorm:"index" json:"org_id"`
	OrgName       string    `json:"org_name"`
	Name          string    `gorm:"not null" json:"name"`
	Description   string    `json:"description"`
	WorkspaceCode string    `gorm:"uniqueIndex" json:"workspace_code"`
	CreatedBy     string    `gorm:"index" json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}

func (Workspace) TableName() string {
	return "workspaces"
}

// WorkspaceField is a variable defined at workspace level, used to seed the
// base template's layout when a workspace is first set up.
type WorkspaceField struct {
	ID          string `gorm:"primaryKey" json:"id"`
	WorkspaceID string `gorm:"not null;index" json:"workspace_id"`
	Name        string `gorm:"not null" json:"name"`
	Key         string `gorm:"not null" json:"key"`
	FieldType   string `gorm:"type:varchar(20)" json:"field_type"`

	// Original column header if the field came from an uploaded file
	SourceHeader string `json:"source_header,omitempty"`

	X      int `gorm:"default:10" json:"x"`
	Y      int `gorm:"default:10" json:"y"`
	Width  int `gorm:"default:160" json:"width"`
	Height int `gorm:"default:32" json:"height"`
	Order  int `gorm:"default:0" json:"order"`

	CreatedAt time.Time `json:"created_at"`
}

func (WorkspaceField) TableName() string {
	return "workspace_fields"
}

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomCode(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			// Fall back to a uuid-derived character
			return strings.ToUpper(uuid.New().String()[:n])
		}
		b.WriteByte(codeAlphabet[idx.Int64()])
	}
	return b.String()
}

// GenerateWorkspaceCode builds a human-shareable workspace code from the org
// name prefix plus random and uuid-derived suffixes.
func GenerateWorkspaceCode(orgName string) string {
	letters := make([]rune, 0, 3)
	for _, r := range orgName {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			letters = append(letters, r)
		}
		if len(letters) == 3 {
			break
		}
	}
	prefix := strings.ToUpper(string(letters))
	if prefix == "" {
		prefix = "WSP"
	}
	hashPart := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:6])
	return prefix + randomCode(5) + hashPart
}
