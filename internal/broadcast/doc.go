// Package broadcast implements the event hub that fans server-originated
// events out to every connected event-stream client.
//
// The Hub owns a map of connection ID to outbound Queue behind one RWMutex.
// Send snapshots the map and pushes a private copy of the event into each
// queue; pushes never block, so a slow or vanished client cannot stall the
// sender or the other subscribers.
package broadcast
