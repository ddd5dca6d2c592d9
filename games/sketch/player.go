/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package sketch

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

const maxNameLength = 24

// Player is one of the two participants in a session.
type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func newPlayer(name string, position int) Player {
	return Player{
		ID:   uuid.NewString(),
		Name: displayName(name, position),
	}
}

// displayName normalizes a client-supplied name, falling back to
// "Player N" (1-based) when nothing printable remains.
func displayName(name string, position int) string {
	name = norm.NFC.String(name)
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.Join(strings.Fields(name), " ")

	if runes := []rune(name); len(runes) > maxNameLength {
		name = strings.TrimSpace(string(runes[:maxNameLength]))
	}

	if name == "" {
		return "Player " + strconv.Itoa(position+1)
	}

	return name
}
