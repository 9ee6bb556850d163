package xmlda

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"mtkflash/internal/daprotocol"
	"mtkflash/internal/driverror"
	"mtkflash/internal/frame"
	"mtkflash/internal/storage"
)

// serveDownloadFile implements the host side of a device-pushed
// CMD:DOWNLOAD-FILE exchange, spec.md §4.7: host acks the sub-command,
// reports the total size, reads an ack, then streams fixed-size chunks
// each guarded by an OK@0x0/OK handshake.
func (c *Client) serveDownloadFile(data []byte, progress daprotocol.ProgressFunc) error {
	text, err := c.readFrameText()
	if err != nil {
		return err
	}
	if !containsCommand(text, "CMD:DOWNLOAD-FILE") {
		return driverror.New(driverror.Xml, "expected CMD:DOWNLOAD-FILE")
	}
	if err := c.ackOK(); err != nil {
		return err
	}

	packetLength := c.packetLength
	if raw := extractArg(text, "packet_length"); raw != "" {
		if n, err := strconv.ParseUint(raw, 0, 32); err == nil && n > 0 {
			packetLength = uint32(n)
		}
	}

	if err := c.reply(fmt.Sprintf("OK@0x%X", len(data))); err != nil {
		return err
	}
	if _, err := c.readFrameText(); err != nil { // ack
		return err
	}

	var sent uint32
	total := uint32(len(data))
	for sent < total {
		if _, err := c.readFrameText(); err != nil { // OK@0x0 handshake
			return err
		}
		end := sent + packetLength
		if end > total {
			end = total
		}
		if err := c.sendRaw(data[sent:end]); err != nil {
			return err
		}
		if _, err := c.readFrameText(); err != nil { // per-chunk OK
			return err
		}
		sent = end
		if progress != nil {
			progress(uint64(sent), uint64(total))
		}
	}
	return nil
}

// serveUploadFile is the inverse of serveDownloadFile: the device
// reports its total size then pushes chunks which the host acks.
func (c *Client) serveUploadFile(w io.Writer, progress daprotocol.ProgressFunc) error {
	text, err := c.readFrameText()
	if err != nil {
		return err
	}
	if !containsCommand(text, "CMD:UPLOAD-FILE") {
		return driverror.New(driverror.Xml, "expected CMD:UPLOAD-FILE")
	}

	sizeText, err := c.readFrameText()
	if err != nil {
		return err
	}
	var total uint64
	fmt.Sscanf(sizeText, "OK@0x%X", &total)

	var got uint64
	for got < total {
		chunkText, err := c.readFrameText()
		if err != nil {
			return err
		}
		if _, err := w.Write([]byte(chunkText)); err != nil {
			return driverror.Wrap(driverror.IO, "writing upload chunk", err)
		}
		got += uint64(len(chunkText))
		if err := c.ackOK(); err != nil {
			return err
		}
		if progress != nil {
			progress(got, total)
		}
	}
	return nil
}

func (c *Client) reply(text string) error {
	return c.sendRaw([]byte(text + "\x00"))
}

func (c *Client) sendRaw(payload []byte) error {
	return frame.Write(c.rw(), frame.DataTypeProtocol, payload)
}

// ReadFlash is not part of the XML dialect's documented surface
// (spec.md §4.7 only describes named-partition download/upload); flash
// I/O by raw address is unsupported here.
func (c *Client) ReadFlash(ctx context.Context, kind storage.PartitionKind, address, size uint64, w io.Writer, progress daprotocol.ProgressFunc) error {
	return errNotImplemented
}

func (c *Client) WriteFlash(ctx context.Context, kind storage.PartitionKind, address uint64, r io.Reader, size uint64, progress daprotocol.ProgressFunc) error {
	return errNotImplemented
}

func (c *Client) EraseFlash(ctx context.Context, kind storage.PartitionKind, address, size uint64) error {
	return errNotImplemented
}

// Download implements named-partition flash via CMD:DOWNLOAD-FILE,
// spec.md §4.7's "BootTo" pattern generalized to any partition name.
func (c *Client) Download(ctx context.Context, partName string, size uint64, r io.Reader, progress daprotocol.ProgressFunc) error {
	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return driverror.Wrap(driverror.IO, "reading source data for download", err)
	}
	cmd := daCommand{
		Command: "CMD:DOWNLOAD",
		Args:    []arg{newArg("partition", partName)},
	}
	return c.runCommand(cmd, func() error {
		return c.serveDownloadFile(data, progress)
	})
}

// Upload implements named-partition readback via CMD:UPLOAD-FILE.
func (c *Client) Upload(ctx context.Context, partName string, w io.Writer, progress daprotocol.ProgressFunc) error {
	cmd := daCommand{
		Command: "CMD:UPLOAD",
		Args:    []arg{newArg("partition", partName)},
	}
	return c.runCommand(cmd, func() error {
		return c.serveUploadFile(w, progress)
	})
}

// Format implements whole-partition erase by name.
func (c *Client) Format(ctx context.Context, partName string) error {
	cmd := daCommand{
		Command: "CMD:FORMAT",
		Args:    []arg{newArg("partition", partName)},
	}
	return c.runCommand(cmd, nil)
}

// Read32/Write32/Peek/GetUSBSpeed/GetStorage/GetPartitions are not
// described for the XML dialect in spec.md §4.7 — only flash-by-name
// and the DOWNLOAD-FILE/UPLOAD-FILE/FILE-SYS-OPERATION/PROGRESS-REPORT
// sub-commands are. Rather than inventing wire commands the spec never
// names, these report an unsupported-operation error, matching
// spec.md's own "ERR!UNSUPPORTED" handling contract.
func (c *Client) Read32(ctx context.Context, address uint32) (uint32, error) {
	return 0, errNotImplemented
}

func (c *Client) Write32(ctx context.Context, address, value uint32) error {
	return errNotImplemented
}

func (c *Client) Peek(ctx context.Context, address uint32, size uint32) ([]byte, error) {
	return nil, errNotImplemented
}

func (c *Client) GetUSBSpeed() (string, error) {
	return "", errNotImplemented
}

func (c *Client) GetStorage() (storage.Info, error) {
	return storage.Info{}, errNotImplemented
}

func (c *Client) GetPartitions() ([]storage.Partition, error) {
	return nil, errNotImplemented
}

var _ daprotocol.Protocol = (*Client)(nil)
