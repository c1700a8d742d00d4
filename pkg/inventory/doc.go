/*
Package inventory runs the order transactions that change products and orders
together.

CreateOrder checks every requested quantity against the stock read inside the
same write transaction, decrements it and inserts the pending order before
committing. Because the store admits one writer at a time, concurrent orders
for the last units are decided strictly in commit order: with K units left and
N single-unit orders, exactly min(N, K) succeed and the rest fail with
ErrInsufficientStock. Prices and names are copied from the products, and the
total is computed with decimal arithmetic; nothing in the request but product
ids and quantities is trusted.

CancelOrder returns each item's quantity to its product and marks the order
cancelled in one transaction. Products deleted since the order was placed are
skipped. A cancelled order cannot be cancelled again, which keeps

	stock + Σ quantity over non-cancelled orders

constant for every product between administrative stock changes.
*/
package inventory
