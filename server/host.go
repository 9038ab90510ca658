package server

import (
	"fmt"

	"athena/builtins"
)

var _ builtins.Host = (*Server)(nil)

// Message shows a dialogue line from the NPC owning the script
func (s *Server) Message(actor, owner int, text string) {
	if c := s.conn(actor); c != nil {
		c.Send(fmt.Sprintf("[%s] %s", s.speaker(owner), text))
	}
}

// Next asks the actor to press enter to continue
func (s *Server) Next(actor, owner int) {
	if c := s.conn(actor); c != nil {
		c.Send("[next]")
	}
}

// Close ends the dialogue window
func (s *Server) Close(actor, owner int) {
	if c := s.conn(actor); c != nil {
		c.Send("[close]")
	}
}

// Menu lists numbered choices; the answer is the choice number
func (s *Server) Menu(actor, owner int, options []string) {
	c := s.conn(actor)
	if c == nil {
		return
	}
	for i, opt := range options {
		c.Send(fmt.Sprintf("%d) %s", i+1, opt))
	}
	c.Send(fmt.Sprintf("[menu] choose 1-%d, %d to cancel", len(options), builtins.MenuCancel))
}

// Prompt asks for a number or a line of text
func (s *Server) Prompt(actor, owner int, text bool) {
	c := s.conn(actor)
	if c == nil {
		return
	}
	if text {
		c.Send("[input] text")
	} else {
		c.Send("[input] number")
	}
}
