package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pterm/pterm"

	"github.com/gamegineer/tablenet/src/net"
	"github.com/gamegineer/tablenet/src/node"
	"github.com/gamegineer/tablenet/src/table"
)

const consoleHelp = `commands:
  players            show who is at the table
  table              show the components on the table
  stats              show node statistics
  request            ask for control of the table
  cancel             withdraw a request for control
  give <player>      hand control to another player
  deal <card>...     put cards on the table
  flip <index>       turn a card over
  remove <index>     take a card off the table
  quit               leave the table`

// console reads commands from a player and prints what happens at the table.
// It is the node listener of the session.
type console struct {
	node  node.LocalNode
	table *table.Table

	in  io.Reader
	out io.Writer
	l   sync.Mutex

	doneCh chan error
}

func newConsole(n node.LocalNode, t *table.Table, in io.Reader, out io.Writer) *console {
	return &console{
		node:   n,
		table:  t,
		in:     in,
		out:    out,
		doneCh: make(chan error, 1),
	}
}

// run executes commands until quit, the end of the input, the end of the
// session or ctx.
func (c *console) run(ctx context.Context) error {
	c.print(pterm.Info.Sprintfln("At the table as %s. Type help for commands.", c.node.PlayerName()))

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := c.execute(line); quit {
				return nil
			}
		case err := <-c.doneCh:
			return err
		case <-ctx.Done():
			return nil
		}
	}
}

// wait blocks until the session ends or ctx is done.
func (c *console) wait(ctx context.Context) error {
	select {
	case err := <-c.doneCh:
		return err
	case <-ctx.Done():
		return nil
	}
}

// execute runs one command line and reports whether the player quit.
func (c *console) execute(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	var err error
	switch cmd, args := fields[0], fields[1:]; cmd {
	case "help":
		c.print(consoleHelp + "\n")
	case "players":
		c.printPlayers(c.node.Players())
	case "table":
		c.printTable()
	case "stats":
		c.printStats(c.node.GetStats())
	case "request":
		err = c.node.RequestControl()
	case "cancel":
		err = c.node.CancelControlRequest()
	case "give":
		if len(args) != 1 {
			err = fmt.Errorf("usage: give <player>")
			break
		}
		err = c.node.GiveControl(args[0])
	case "deal":
		err = c.deal(args)
	case "flip":
		err = c.flip(args)
	case "remove":
		err = c.remove(args)
	case "quit", "exit":
		if err := c.node.Disconnect(); err != nil && net.ErrorCodeOf(err) != net.NotConnected {
			c.print(pterm.Error.Sprintfln("%v", err))
		}
		return true
	default:
		err = fmt.Errorf("unknown command %q, type help", cmd)
	}

	if err != nil {
		c.print(pterm.Error.Sprintfln("%v", err))
	}
	return false
}

// edit applies a change to the local table, which broadcasts it. Only the
// editor may change the table; anyone else would just diverge from it.
func (c *console) edit(path *table.ComponentPath, inc *table.ComponentIncrement) error {
	if !c.isEditor() {
		return net.NewTableNetworkError(net.NotEditor, nil)
	}
	return c.table.IncrementComponent(path, inc)
}

func (c *console) isEditor() bool {
	for _, p := range c.node.Players() {
		if p.HasRole(net.RoleLocal) {
			return p.IsEditor()
		}
	}
	return false
}

func (c *console) deal(cards []string) error {
	if len(cards) == 0 {
		return fmt.Errorf("usage: deal <card>...")
	}

	components := make([]*table.Component, len(cards))
	for i, card := range cards {
		components[i] = table.NewComponent(map[string]string{
			"card": card,
			"face": "down",
		})
	}

	return c.edit(nil, &table.ComponentIncrement{
		AddComponents: &table.ComponentsInsertion{
			Index:      len(c.table.Root().Children),
			Components: components,
		},
	})
}

func (c *console) flip(args []string) error {
	path, err := cardPath(args)
	if err != nil {
		return err
	}
	card, err := c.table.Component(path)
	if err != nil {
		return err
	}

	face := "up"
	if card.Attributes["face"] == "up" {
		face = "down"
	}
	return c.edit(path, &table.ComponentIncrement{
		SetAttributes: map[string]string{"face": face},
	})
}

func (c *console) remove(args []string) error {
	path, err := cardPath(args)
	if err != nil {
		return err
	}
	if _, err := c.table.Component(path); err != nil {
		return err
	}
	return c.edit(nil, &table.ComponentIncrement{
		RemoveComponents: &table.ComponentsRemoval{Index: path.Index(), Count: 1},
	})
}

func cardPath(args []string) (*table.ComponentPath, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("expected a card index")
	}
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, fmt.Errorf("bad card index %q", args[0])
	}
	return table.NewComponentPath(nil, index)
}

func (c *console) printPlayers(players []net.Player) {
	data := pterm.TableData{{"Player", "Roles"}}
	for _, p := range players {
		data = append(data, []string{p.Name, p.Roles.String()})
	}
	c.render(data)
}

func (c *console) printTable() {
	root := c.table.Root()
	if len(root.Children) == 0 {
		c.print(pterm.Info.Sprintln("The table is empty."))
		return
	}

	data := pterm.TableData{{"#", "Card", "Face"}}
	for i, child := range root.Children {
		card := child.Attributes["card"]
		if child.Attributes["face"] != "up" {
			card = "??"
		}
		data = append(data, []string{strconv.Itoa(i), card, child.Attributes["face"]})
	}
	c.render(data)
}

func (c *console) printStats(stats map[string]string) {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	data := pterm.TableData{{"Stat", "Value"}}
	for _, k := range keys {
		data = append(data, []string{k, stats[k]})
	}
	c.render(data)
}

func (c *console) render(data pterm.TableData) {
	s, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		c.print(pterm.Error.Sprintfln("%v", err))
		return
	}
	c.print(s + "\n")
}

func (c *console) print(s string) {
	c.l.Lock()
	defer c.l.Unlock()
	io.WriteString(c.out, s)
}

// PlayersUpdated implements node.Listener.
func (c *console) PlayersUpdated(players []net.Player) {
	c.printPlayers(players)
}

// Disconnected implements node.Listener.
func (c *console) Disconnected(err error) {
	if err != nil {
		c.print(pterm.Warning.Sprintfln("Left the table: %v", err))
	} else {
		c.print(pterm.Info.Sprintln("Left the table."))
	}

	select {
	case c.doneCh <- err:
	default:
	}
}
