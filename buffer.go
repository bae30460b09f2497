/*
Copyright 2024 Tim St. Pierre
Screen buffer for lcd1602 character display
*/
package i2clcd

import "fmt"

// The screen buffer holds what the display should show. It only reaches
// the glass on Flush.

func (d *Dev) resetBuffer() {
	for r := range d.buf {
		for c := range d.buf[r] {
			d.buf[r][c] = EmptyChar
		}
	}
}

func checkCell(row, col int) error {
	if row < 0 || row >= Rows || col < 0 || col >= Cols {
		return fmt.Errorf("%w: (%d,%d)", ErrOutOfRange, row, col)
	}
	return nil
}

// SetCell stores c in the buffer at row, col.
func (d *Dev) SetCell(row, col int, c byte) error {
	if err := checkCell(row, col); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buf[row][col] = c
	return nil
}

// Cell returns the buffered character at row, col.
func (d *Dev) Cell(row, col int) (byte, error) {
	if err := checkCell(row, col); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buf[row][col], nil
}

// Print copies s into the buffer starting at row, col. Characters past the
// end of the row are dropped; the number copied is returned.
func (d *Dev) Print(row, col int, s string) (int, error) {
	if err := checkCell(row, col); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return copy(d.buf[row][col:], s), nil
}

// Buffer returns a copy of the screen buffer.
func (d *Dev) Buffer() [Rows][Cols]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buf
}
