package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ID is an entity identifier. The backend sends numeric or string ids; both
// decode to the same string form.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var value string
		if err := json.Unmarshal(data, &value); err != nil {
			return err
		}
		*id = ID(value)
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(data, &number); err != nil {
		return fmt.Errorf("invalid id %s", data)
	}
	*id = ID(number.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}

// ByteSize is a file size transported as a numeric string.
type ByteSize int64

func (s *ByteSize) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = 0
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		if raw == "" {
			*s = 0
			return nil
		}
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid size %s", data)
	}
	*s = ByteSize(parsed)
	return nil
}

func (s ByteSize) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatInt(int64(s), 10))
}

type User struct {
	ID    ID     `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Grade struct {
	ID           ID     `json:"id"`
	Name         string `json:"name"`
	Time         string `json:"time"`
	StudentCount int    `json:"studentCount"`
}

type GradeInput struct {
	Name string `json:"name" validate:"required"`
	Time string `json:"time" validate:"required,timeofday"`
}

type GradeInfo struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
	Time string `json:"time"`
}

type StudentStatus string

const (
	StudentActive      StudentStatus = "active"
	StudentExcluded    StudentStatus = "excluded"
	StudentTransferred StudentStatus = "transferred"
)

type Student struct {
	ID            ID         `json:"id"`
	Name          string     `json:"name"`
	GradeID       ID         `json:"gradeId"`
	GradeName     string     `json:"gradeName,omitempty"`
	GradeTime     string     `json:"gradeTime,omitempty"`
	Order         int        `json:"order,omitempty"`
	Excluded      bool       `json:"excluded"`
	Transferred   bool       `json:"transferred"`
	ExclusionDate *time.Time `json:"exclusionDate,omitempty"`
	TransferDate  *time.Time `json:"transferDate,omitempty"`
	OldGradeInfo  *GradeInfo `json:"old_grade_info,omitempty"`
	NewGradeInfo  *GradeInfo `json:"new_grade_info,omitempty"`

	// Pending marks a local change that the backend has not confirmed yet.
	Pending bool `json:"-"`
}

func (s Student) Status() StudentStatus {
	switch {
	case s.Transferred:
		return StudentTransferred
	case s.Excluded:
		return StudentExcluded
	}
	return StudentActive
}

type StudentInput struct {
	Name    string `json:"name" validate:"required"`
	GradeID ID     `json:"gradeId" validate:"required"`
}

type TransferInput struct {
	NewGradeID ID `json:"newGradeId" validate:"required"`
}

type StudentFile struct {
	ID           ID        `json:"id"`
	StudentID    ID        `json:"studentId"`
	OriginalName string    `json:"originalName"`
	MimeType     string    `json:"mimeType"`
	Size         ByteSize  `json:"size"`
	UploadDate   time.Time `json:"uploadDate"`
}

type FileStats struct {
	TotalFiles int        `json:"totalFiles"`
	LastUpload *time.Time `json:"lastUpload"`
	TotalSize  ByteSize   `json:"totalSize"`
}

type Occurrence struct {
	ID          ID            `json:"id"`
	StudentID   ID            `json:"studentId"`
	Observation string        `json:"observation"`
	CreatedAt   time.Time     `json:"createdAt"`
	Files       []StudentFile `json:"files,omitempty"`
}

type OccurrenceInput struct {
	Observation string `json:"observation" validate:"required"`
}
