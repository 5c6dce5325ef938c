/*
Package mixer provides the time-windowed XOR keystream used to mask a relayed byte stream.

Note that this is NOT encryption, since it is easily reversible by anyone holding the passphrase.
This falls squarely under the obfuscation category.
It's intended to remove static byte patterns from a stream that is already protected by its own protocol (SSH, TLS, etc.), so that passive heuristic detectors can't fingerprint it.

# How it works:

A passphrase is hardened once per process into a BaseKey by iterating SHA-256 a large number of times (see Hardener).
A Mixer is then derived from the BaseKey (plus an optional suffix) and the current 5-minute time window.
The window index selects both the key bytes and the starting position within them, so the same passphrase produces a different keystream every window.
Every byte passed through Mix is XOR'd with the next key byte, and the key wraps around like a ring buffer.

# Important note:

Two parties must derive their Mixer from the same BaseKey, suffix, and window, and must mix exactly the same bytes in exactly the same order.
There is no framing and no resynchronization, so a dropped or reordered byte garbles everything that follows, and nothing reports it.
Wall clocks must agree to within one window.
*/
package mixer
