/*
Package relay pairs each accepted TCP connection with a dialed connection to a fixed destination, and mixes everything passing between them.

# How it works:

A Server accepts connections and starts a Session for each one.
The Session reads the client side and queues raw chunks toward the destination, while a Dialer connects to the destination, mixes those chunks in order, and writes them out.
Bytes read from the destination are queued raw toward the client, and the Session mixes them before writing them to the client.

If the destination can't be reached, or drops the connection, the Dialer retries with a capped exponential backoff.
Queued chunks and the keystream cursor survive the retry, so nothing is lost or repeated.
When the client disconnects, a close marker follows the last chunk through the queue, and the Dialer stops retrying and closes the destination connection.

# Important note:

There's no handshake, framing, or integrity check.
Two relays only understand each other if they were started with the same passphrase, and their clocks agree to within one keystream window.
*/
package relay
