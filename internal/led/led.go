// Package led holds the status LED state and applies control-plane
// commands to it.
package led

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/sweeney/dht-node/internal/gpio"
)

// Command is a control-plane request for the LED.
type Command string

const (
	CommandOn     Command = "ON"
	CommandOff    Command = "OFF"
	CommandToggle Command = "TOGGLE"
	CommandStatus Command = "STATUS"
)

// ParseCommand accepts ON, OFF, TOGGLE and STATUS, case-insensitively.
func ParseCommand(s string) (Command, error) {
	c := Command(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case CommandOn, CommandOff, CommandToggle, CommandStatus:
		return c, nil
	}
	return "", fmt.Errorf("unknown LED command %q", s)
}

// StateString returns "ON" or "OFF".
func StateString(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

// Reply formats the response sent back to a command issuer.
func Reply(on bool) string {
	return "LED:" + StateString(on)
}

// Controller is the LED store. Safe for concurrent use by the web and MQTT
// handlers.
type Controller struct {
	mu       sync.Mutex
	out      gpio.Output
	on       bool
	log      *slog.Logger
	onChange []func(on bool)
}

// New creates a Controller and switches the LED off.
func New(out gpio.Output, log *slog.Logger) (*Controller, error) {
	c := &Controller{out: out, log: log}
	if err := out.Set(false); err != nil {
		return nil, fmt.Errorf("init LED: %w", err)
	}
	log.Info("led initialized", "state", StateString(false))
	return c, nil
}

// OnChange registers fn to be called after every successful state write.
// Register observers before the controller is shared.
func (c *Controller) OnChange(fn func(on bool)) {
	c.onChange = append(c.onChange, fn)
}

// State returns the current LED state.
func (c *Controller) State() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.on
}

// Set drives the LED.
func (c *Controller) Set(on bool) error {
	c.mu.Lock()
	err := c.setLocked(on)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.notify(on)
	return nil
}

// Toggle inverts the LED and returns the new state.
func (c *Controller) Toggle() (bool, error) {
	c.mu.Lock()
	on := !c.on
	err := c.setLocked(on)
	c.mu.Unlock()
	if err != nil {
		return !on, err
	}
	c.notify(on)
	return on, nil
}

// Apply executes cmd and returns the resulting state, which on error is
// the unchanged current state. STATUS only reports.
func (c *Controller) Apply(cmd Command) (bool, error) {
	switch cmd {
	case CommandOn, CommandOff:
		on := cmd == CommandOn
		if err := c.Set(on); err != nil {
			return c.State(), err
		}
		return on, nil
	case CommandToggle:
		return c.Toggle()
	case CommandStatus:
		return c.State(), nil
	}
	return c.State(), fmt.Errorf("unknown LED command %q", string(cmd))
}

// Close switches the LED off and releases the pin.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.on = false
	return c.out.Close()
}

func (c *Controller) setLocked(on bool) error {
	if err := c.out.Set(on); err != nil {
		return fmt.Errorf("set LED %s: %w", StateString(on), err)
	}
	c.on = on
	c.log.Info("led set", "state", StateString(on))
	return nil
}

func (c *Controller) notify(on bool) {
	for _, fn := range c.onChange {
		fn(on)
	}
}
