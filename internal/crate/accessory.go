package crate

// LockDrawer energises the drawer lock relay.
func (c *Controller) LockDrawer(src Source) {
	c.setAccessory(c.ports.DrawerLock, true, EventDrawerLocked, src)
}

// UnlockDrawer releases the drawer lock relay.
func (c *Controller) UnlockDrawer(src Source) {
	c.setAccessory(c.ports.DrawerLock, false, EventDrawerUnlocked, src)
}

// SetSpare energises the spare relay.
func (c *Controller) SetSpare(src Source) {
	c.setAccessory(c.ports.Spare, true, EventSpareSet, src)
}

// ClearSpare releases the spare relay.
func (c *Controller) ClearSpare(src Source) {
	c.setAccessory(c.ports.Spare, false, EventSpareCleared, src)
}

func (c *Controller) setAccessory(out Output, on bool, t EventType, src Source) {
	if err := out.Set(on); err != nil {
		c.emit(EventFault, src, err.Error())
		return
	}
	c.emit(t, src, "")
}
