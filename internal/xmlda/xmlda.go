// Package xmlda implements the "XML" v6 DA wire dialect, spec.md §4.7,
// component C6: the same 12-byte framing as xflash, but every payload is
// a NUL-terminated UTF-8 XML document. Grounded the same way xflash is —
// on the teacher's hand-rolled framed-packet idiom — with encoding/xml
// doing the structured (un)marshaling the teacher has no direct analog
// for, since none of its wire formats are XML; encoding/xml is the
// correct idiomatic choice for a self-describing tagged document format
// like this one, not a hand-rolled string template.
package xmlda

import (
	"encoding/xml"
	"strings"

	"mtkflash/internal/driverror"
	"mtkflash/internal/frame"
	"mtkflash/internal/port"
)

const protocolVersion = "1"

// hostSupportedCommands is announced at DA1 setup, spec.md §4.7.
const hostSupportedCommands = "CMD:DOWNLOAD-FILE^1@CMD:FILE-SYS-OPERATION^1@CMD:PROGRESS-REPORT^1@CMD:UPLOAD-FILE^1@"

// daCommand is the generic XML envelope every command shares.
type daCommand struct {
	XMLName xml.Name `xml:"da"`
	Version string   `xml:"version"`
	Command string   `xml:"command"`
	Args    []arg    `xml:"arg,omitempty"`
}

type arg struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

// Client drives the XML v6 dialect over a raw Port once in DA mode.
type Client struct {
	Port         port.Port
	packetLength uint32
}

// New wraps p as an XML-dialect client.
func New(p port.Port) *Client {
	return &Client{Port: p, packetLength: 4096}
}

func (c *Client) rw() port.ReadWriter { return port.ReadWriter{P: c.Port} }

// sendXML marshals cmd and sends it as one framed message, NUL-terminated.
func (c *Client) sendXML(cmd daCommand) error {
	cmd.Version = protocolVersion
	body, err := xml.Marshal(cmd)
	if err != nil {
		return driverror.Wrap(driverror.Xml, "marshal command", err)
	}
	payload := append([]byte(xml.Header), body...)
	payload = append(payload, 0)
	return frame.Write(c.rw(), frame.DataTypeProtocol, payload)
}

// readFrameText reads one framed message and returns it as a trimmed
// string with any trailing NUL removed.
func (c *Client) readFrameText() (string, error) {
	_, payload, err := frame.ReadPayload(c.rw())
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(payload), "\x00"), nil
}

// expectOK reads one frame and requires it be "OK" or "OK@0x<hex>",
// spec.md §4.7, returning the optional hex tail.
func (c *Client) expectOK() (string, error) {
	text, err := c.readFrameText()
	if err != nil {
		return "", err
	}
	if text == "OK" {
		return "", nil
	}
	if strings.HasPrefix(text, "OK@0x") {
		return strings.TrimPrefix(text, "OK@0x"), nil
	}
	if strings.HasPrefix(text, "ERR!UNSUPPORTED") {
		return "", driverror.New(driverror.Xml, "unsupported command")
	}
	return "", driverror.New(driverror.Xml, "unexpected reply: "+text)
}

func (c *Client) ackOK() error {
	return frame.Write(c.rw(), frame.DataTypeProtocol, []byte("OK\x00"))
}

// runCommand brackets a command in the START/END lifetime markers
// spec.md §4.7 describes: consume START (or proceed if it's transiently
// missing), send cmd, run body against device-driven sub-commands, then
// consume END.
func (c *Client) runCommand(cmd daCommand, body func() error) error {
	startText, err := c.readFrameText()
	if err != nil {
		return driverror.Wrap(driverror.Xml, "no reply awaiting CMD:START", err)
	}
	if containsCommand(startText, "CMD:START") {
		if err := c.ackOK(); err != nil {
			return err
		}
	}
	// Missing START is transient per spec.md §4.7: assume valid and
	// proceed; the frame already read in its place is discarded.

	if err := c.sendXML(cmd); err != nil {
		return err
	}

	if body != nil {
		if err := body(); err != nil {
			return err
		}
	}

	endText, err := c.readFrameText()
	if err != nil {
		return driverror.Wrap(driverror.Xml, "no reply awaiting CMD:END", err)
	}
	if containsCommand(endText, "CMD:END") {
		return c.ackOK()
	}
	return nil
}

func containsCommand(text, name string) bool {
	return strings.Contains(text, "<command>"+name+"</command>")
}

func extractArg(text, name string) string {
	open := "<" + name + ">"
	close := "</" + name + ">"
	start := strings.Index(text, open)
	if start < 0 {
		return ""
	}
	start += len(open)
	end := strings.Index(text[start:], close)
	if end < 0 {
		return ""
	}
	return text[start : start+end]
}

func newArg(name, value string) arg {
	return arg{XMLName: xml.Name{Local: name}, Value: value}
}
