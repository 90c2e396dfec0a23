/*
Package state contains a state machine for a custodial donation held by a
contract account.

A donation has two states:
- Active: anybody may give to the donation.
- Closed: the owner has closed the donation and swept its balance. No further
gifts are accepted. Closed is terminal.

The operations of the state machine are:
- Init: Creating the state of a newly deployed donation.
- Give: Accepting a gift of any amount while the donation is active.
- Close: Closing the donation and transferring the whole balance to the owner.
- View: Inspecting the state and balance.

	            Give
	           +----+
	           |    v
	 Init  +---+------+  Close   +--------+
	------>|  Active  +--------->| Closed |
	       +----------+ (owner)  +--------+

The persisted state and the balance are held by the host that executes calls,
and are accessed through the StateReader and Host interfaces. The host is
expected to execute each call atomically: when an operation returns an error
the host discards any state change and any value movement made during the
call.

None of the primitives in this package are threadsafe and synchronization
must be provided by the caller if the package is used in a concurrent
context.
*/
package state
