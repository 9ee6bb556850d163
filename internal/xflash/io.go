package xflash

import (
	"context"
	"encoding/binary"
	"io"

	"mtkflash/internal/daprotocol"
	"mtkflash/internal/driverror"
	"mtkflash/internal/storage"
)

// flashParam builds the 56-byte parameter block spec.md §4.6 flash
// read/write commands share: storage_type, partition_kind, address,
// size, then eight reserved LE u32 "nand_extension" words (32 bytes).
func flashParam(kind storage.PartitionKind, address, size uint64) []byte {
	buf := make([]byte, 56)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(kind.Family))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(kind.Emmc))
	binary.LittleEndian.PutUint64(buf[8:16], address)
	binary.LittleEndian.PutUint64(buf[16:24], size)
	// buf[24:56] stays zero: nand_extension[8]u32
	return buf
}

func additiveChecksum(data []byte) uint16 {
	var sum uint32
	for _, b := range data {
		sum += uint32(b)
	}
	return uint16(sum % 0x10000)
}

// ReadFlash implements daprotocol.Protocol.ReadFlash, spec.md §4.6.
func (c *Client) ReadFlash(ctx context.Context, kind storage.PartitionKind, address, size uint64, w io.Writer, progress daprotocol.ProgressFunc) error {
	if err := c.sendCmd(cmdReadData); err != nil {
		return err
	}
	if err := c.sendData(flashParam(kind, address, size)); err != nil {
		return err
	}
	if err := c.expectStatusOK(); err != nil {
		return err
	}

	var read uint64
	for read < size {
		_, payload, err := c.readFrame()
		if err != nil {
			return err
		}
		if len(payload) == 0 {
			break
		}
		if _, err := w.Write(payload); err != nil {
			return driverror.Wrap(driverror.IO, "writing flash read chunk to sink", err)
		}
		read += uint64(len(payload))
		if progress != nil {
			progress(read, size)
		}
		if err := c.sendData(make([]byte, 4)); err != nil {
			return err
		}
	}
	return nil
}

// writeChunked is the checksummed chunked transfer both WriteFlash and
// Download use, spec.md §4.6: zero-pad the final chunk so the total
// written exactly equals size.
func (c *Client) writeChunked(r io.Reader, size uint64, progress daprotocol.ProgressFunc) error {
	chunkSize := c.writePacketSize
	if chunkSize == 0 {
		chunkSize = 4096
	}

	var written uint64
	buf := make([]byte, chunkSize)
	for written < size {
		want := chunkSize
		if remaining := size - written; uint64(want) > remaining {
			want = uint32(remaining)
		}
		n, err := io.ReadFull(r, buf[:want])
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			return driverror.Wrap(driverror.IO, "reading source data for flash write", err)
		}
		chunk := buf[:want]
		for i := n; i < len(chunk); i++ {
			chunk[i] = 0
		}

		msg := make([]byte, 8+len(chunk))
		binary.LittleEndian.PutUint32(msg[0:4], 0)
		binary.LittleEndian.PutUint32(msg[4:8], uint32(additiveChecksum(chunk)))
		copy(msg[8:], chunk)
		if err := c.sendData(msg); err != nil {
			return err
		}

		written += uint64(len(chunk))
		if progress != nil {
			progress(written, size)
		}
		if written > size {
			written = size
		}
	}
	return c.expectStatusOK()
}

// WriteFlash implements daprotocol.Protocol.WriteFlash.
func (c *Client) WriteFlash(ctx context.Context, kind storage.PartitionKind, address uint64, r io.Reader, size uint64, progress daprotocol.ProgressFunc) error {
	if err := c.sendCmd(cmdWriteData); err != nil {
		return err
	}
	if err := c.sendData(flashParam(kind, address, size)); err != nil {
		return err
	}
	if err := c.expectStatusOK(); err != nil {
		return err
	}
	return c.writeChunked(r, size, progress)
}

// EraseFlash is implemented as a zero-fill write, since spec.md does
// not define a dedicated erase opcode distinct from write-with-zeros
// for XFlash (only Format addresses whole-partition erase by name).
func (c *Client) EraseFlash(ctx context.Context, kind storage.PartitionKind, address, size uint64) error {
	zero := &zeroReader{}
	return c.WriteFlash(ctx, kind, address, zero, size, nil)
}

type zeroReader struct{}

func (z *zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

// Download implements flash-by-name, spec.md §4.6.
func (c *Client) Download(ctx context.Context, partName string, size uint64, r io.Reader, progress daprotocol.ProgressFunc) error {
	if err := c.sendCmd(cmdDownload); err != nil {
		return err
	}
	nameBytes := append([]byte(partName), 0)
	args := make([]byte, len(nameBytes)+8)
	copy(args, nameBytes)
	binary.LittleEndian.PutUint64(args[len(nameBytes):], size)
	if err := c.sendData(args); err != nil {
		return err
	}
	if err := c.expectStatusOK(); err != nil {
		return err
	}
	return c.writeChunked(r, size, progress)
}

// Upload implements readback-by-name, spec.md §4.6.
func (c *Client) Upload(ctx context.Context, partName string, w io.Writer, progress daprotocol.ProgressFunc) error {
	if err := c.sendCmd(cmdUpload); err != nil {
		return err
	}
	nameBytes := append([]byte(partName), 0)
	if err := c.sendData(nameBytes); err != nil {
		return err
	}

	_, sizePayload, err := c.readFrame()
	if err != nil {
		return err
	}
	if len(sizePayload) < 8 {
		return driverror.New(driverror.XFlash, "upload size response too short")
	}
	total := binary.LittleEndian.Uint64(sizePayload)

	var got uint64
	for got < total {
		_, payload, err := c.readFrame()
		if err != nil {
			return err
		}
		if _, err := w.Write(payload); err != nil {
			return driverror.Wrap(driverror.IO, "writing upload chunk to sink", err)
		}
		got += uint64(len(payload))
		if progress != nil {
			progress(got, total)
		}
		if err := c.sendData(make([]byte, 4)); err != nil {
			return err
		}
	}
	return nil
}

// Format implements whole-partition erase by name.
func (c *Client) Format(ctx context.Context, partName string) error {
	if err := c.sendCmd(cmdFormatPartition); err != nil {
		return err
	}
	nameBytes := append([]byte(partName), 0)
	if err := c.sendData(nameBytes); err != nil {
		return err
	}
	return c.expectStatusOK()
}
