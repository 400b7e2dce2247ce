package connection

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Profile identifies the facility and the caller for one logical operation.
// It is never persisted with its password.
type Profile struct {
	Host     string
	Port     int
	User     string
	Password string
	// HLQ is the high-level qualifier of the caller's own datasets.
	// Empty means the user id.
	HLQ string
}

func (p Profile) Validate() error {
	if p.Host == "" {
		return fmt.Errorf("host is required")
	}
	if p.Port <= 0 || p.Port > 65535 {
		return fmt.Errorf("invalid port: %d", p.Port)
	}
	if p.User == "" {
		return fmt.Errorf("user is required")
	}
	if p.Password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}

// OwnPattern is the dataset list pattern for the caller's own datasets.
func (p Profile) OwnPattern() string {
	hlq := p.HLQ
	if hlq == "" {
		hlq = p.User
	}
	return strings.ToUpper(hlq) + ".*"
}

func (p Profile) BaseURL() string {
	return "https://" + net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// String omits the password so profiles can be logged and printed.
func (p Profile) String() string {
	return fmt.Sprintf("%s@%s", p.User, net.JoinHostPort(p.Host, strconv.Itoa(p.Port)))
}

type Dataset struct {
	Name    string
	Org     string // PO, PO-E, PS, VS, ...
	RecFm   string
	LRecL   string
	BlkSize string
	Volume  string
	Device  string
	Public  bool
}

type Member struct {
	Name     string
	ID       string
	Version  string
	Modified string

	VV      int    // version
	MM      int    // modification
	Created string // YYYY/MM/DD
	Changed string // YYYY/MM/DD HH:MM
	Size    int
	Init    int
	Mod     int
	User    string
}

type Job struct {
	JobID   string `json:"jobid"`
	JobName string `json:"jobname"`
	Owner   string `json:"owner"`
	Status  string `json:"status"` // ACTIVE, OUTPUT, INPUT
	RetCode string `json:"retcode"`
	Class   string `json:"class"`
}

type JobFile struct {
	ID       int    `json:"id"`
	DDName   string `json:"ddname"`
	StepName string `json:"stepname"`
}
