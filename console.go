/*
Copyright 2024 Tim St. Pierre
Streams bytes into the lcd1602 screen buffer
*/
package i2clcd

import "sync"

// Console writes incoming bytes into consecutive buffer cells, wrapping from
// the end of row 0 to row 1 and from the end of row 1 back to row 0, and
// repaints the display after every Write.
type Console struct {
	mu       sync.Mutex
	d        *Dev
	row, col int
}

func NewConsole(d *Dev) *Console {
	return &Console{d: d}
}

// Position returns the cell the next byte goes to.
func (c *Console) Position() (row, col int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.row, c.col
}

func (c *Console) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, b := range p {
		if err := c.d.SetCell(c.row, c.col, b); err != nil {
			return i, err
		}
		c.col = (c.col + 1) % Cols
		if c.col == 0 {
			c.row = (c.row + 1) % Rows
		}
	}
	// Every byte is in the buffer even when the repaint fails.
	return len(p), c.d.Flush()
}
