package webhook

import (
	"errors"
	"regexp"
	"strings"

	"pulsabot/internal/models"
)

// ErrUnrecognized marks input that does not match the provider's status-line
// grammar. The HTTP handler answers such input with a neutral 200 so the
// provider does not retry-storm.
var ErrUnrecognized = errors.New("unrecognized webhook format")

// Callback is one parsed provider status line.
type Callback struct {
	RefID       string
	TrxID       string
	ProductCode string
	Destination string
	StatusWord  string
	Detail      string
	ResultCode  string
}

// Provider status lines look like:
//
//	RC=<refid> TrxID=<digits> <PRODUCT>.<dest> <status> <detail> [Saldo ...] [result=<n>]
//
// The optional Saldo tail reports the reseller's remaining deposit and is
// deliberately not captured.
var lineRx = regexp.MustCompile(
	`(?is)^RC=(?P<reffid>[a-f0-9-]+)\s+TrxID=(?P<trxid>\d+)\s+` +
		`(?P<produk>[A-Za-z0-9]+)\.(?P<tujuan>\d+)\s+` +
		`(?P<status>[A-Za-z]+)\s*` +
		`(?P<detail>.+?)` +
		`(?:\s+Saldo[\s\S]*?)?` +
		`(?:\bresult=(?P<code>\d+))?\s*>?$`,
)

// Parse extracts a Callback from a provider status line. Returns
// ErrUnrecognized when the line does not match the grammar.
func Parse(message string) (*Callback, error) {
	m := lineRx.FindStringSubmatch(strings.TrimSpace(message))
	if m == nil {
		return nil, ErrUnrecognized
	}

	fields := make(map[string]string, len(m))
	for i, name := range lineRx.SubexpNames() {
		if name != "" {
			fields[name] = m[i]
		}
	}

	return &Callback{
		RefID:       fields["reffid"],
		TrxID:       fields["trxid"],
		ProductCode: fields["produk"],
		Destination: fields["tujuan"],
		StatusWord:  strings.ToLower(fields["status"]),
		Detail:      strings.TrimSpace(fields["detail"]),
		ResultCode:  fields["code"],
	}, nil
}

// MapStatus translates a provider status word to the internal transaction
// status. ok == false means the word is non-terminal (or unknown) and the
// callback must be ignored without touching the transaction.
func MapStatus(statusWord string) (string, bool) {
	switch strings.ToLower(statusWord) {
	case "sukses":
		return models.StatusSuccess, true
	case "gagal", "batal":
		return models.StatusCancelled, true
	}
	return "", false
}
