// The iop package tree talks to the I/O processor, the coprocessor that owns
// the PlayStation 2 peripherals.
//
// Everything below iop/ is low-level: patches, module injection and the RPC
// link itself. Sequencing lives in the drivers packages.
package iop

// I/O processor
// https://psi-rockin.github.io/ps2tek/#iop
