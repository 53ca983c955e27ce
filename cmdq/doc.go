// Package cmdq encodes register command queues for the MN864xx bridge.
//
// A request carries a batch of register operations. Consecutive operations of
// the same kind are coalesced into one command group sharing a single header,
// so a long run of writes costs four bytes per write plus one group header.
//
// # Wire Layout
//
// Request (at most 4+2028 bytes):
//
//	code:u8  length:u16le  group_count:u8  groups...
//
// Command group:
//
//	major:u8  minor:u8  group_length:u8  operation_count:u8  operands...
//
// Reply (at most 5+2027 bytes):
//
//	status1:u8  status2:u8  reserved:u8  reserved:u8  data_count:u8  data...
//
// Operand layouts per kind:
//
//	Read       count  addr_hi  addr_lo  0
//	Write      count  addr_hi  addr_lo  data[count]
//	Mask       1      addr_hi  addr_lo  value  mask
//	Delay      0      time_lo  time_hi  0
//	WaitSet    0      addr_hi  addr_lo  mask
//	WaitClear  0      addr_hi  addr_lo  mask
//
// # Usage
//
// A Queue is reused across transactions and must not be shared between
// goroutines. Session wraps a Queue and an Invoker with the lock that makes a
// whole build-then-execute cycle atomic:
//
//	s := cmdq.NewSession(inv, cmdq.DefaultChannel, logger)
//	r, err := s.Do(ctx, 4, func(q *cmdq.Queue) error {
//		if err := q.WriteReg(0x7203, 0x00); err != nil {
//			return err
//		}
//		return q.WaitClear(0x7a84, 0x01)
//	})
package cmdq
