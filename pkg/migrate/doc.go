/*
Package migrate imports the collection files of the legacy JSON-file service
into the storefront database.

The legacy service kept each collection as a JSON array in its own file:

	users.json     hashed_password, naive ISO timestamps, optional is_active
	products.json  float prices
	orders.json    float prices and totals

Import converts every record (hashed_password becomes password_hash, prices
become decimals, timestamps are read as UTC) and inserts the lot in a single
store transaction, so an import either lands completely or not at all. It is
safe to run again: records whose id is already stored are skipped. Legacy
SHA-256 password hashes are kept as they are and upgraded to bcrypt on each
user's next login.

With Options.DryRun the transaction is rolled back after every record has
been checked, and the report shows what would have been imported.
*/
package migrate
