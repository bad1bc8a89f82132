package node

import (
	"github.com/gamegineer/tablenet/src/net"
)

// roster is the list of players at the table, in the order they joined. The
// Local role is never stored; it is applied when a snapshot is taken for the
// local player.
type roster struct {
	players []*net.Player
}

func newRoster(players ...net.Player) *roster {
	r := &roster{}
	r.set(players)
	return r
}

func (r *roster) set(players []net.Player) {
	r.players = make([]*net.Player, len(players))
	for i, p := range players {
		p.Roles &^= net.RoleLocal
		cp := p
		r.players[i] = &cp
	}
}

func (r *roster) get(name string) *net.Player {
	for _, p := range r.players {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func (r *roster) contains(name string) bool {
	return r.get(name) != nil
}

func (r *roster) add(p net.Player) {
	p.Roles &^= net.RoleLocal
	r.players = append(r.players, &p)
}

func (r *roster) remove(name string) (net.Player, bool) {
	for i, p := range r.players {
		if p.Name == name {
			r.players = append(r.players[:i], r.players[i+1:]...)
			return *p, true
		}
	}
	return net.Player{}, false
}

// editor returns the player in control of the table, if any.
func (r *roster) editor() *net.Player {
	for _, p := range r.players {
		if p.IsEditor() {
			return p
		}
	}
	return nil
}

func (r *roster) len() int {
	return len(r.players)
}

// snapshot copies the roster, marking local as the local player.
func (r *roster) snapshot(local string) []net.Player {
	players := make([]net.Player, len(r.players))
	for i, p := range r.players {
		players[i] = *p
		if p.Name == local {
			players[i].Roles |= net.RoleLocal
		}
	}
	return players
}

// wire copies the roster for a Players message.
func (r *roster) wire() []net.Player {
	return r.snapshot("")
}
