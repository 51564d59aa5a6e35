package constant

const NotifySlotFilledTemplate = `Slot %s (%s-%s) on %s is now full.

All %s tickets for this slot have been issued. Tickets remain valid until %s.

Walk-up guests should be pointed to the next open slot on the board.

Stall Ticket
`

const NotifySlotToggledTemplate = `Slot %s (%s-%s) on %s has been %s by an administrator.

Issued so far: %s of %s.

Stall Ticket
`

const NotifyPauseToggledTemplate = `Ticket issuance has been %s.

The customer page rejects new tickets while issuance is paused. Slots and
already issued tickets are not affected.

Stall Ticket
`
