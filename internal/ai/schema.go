package ai

// swapsSchemaDescription describes the ClickHouse schema used for NL→SQL
// prompting. Must match the column list InsertSwap writes in internal/cache.
const swapsSchemaDescription = `
Database: lumen
Table: swaps

Columns:
  - signature  String        -- transaction signature (one row per route hop)
  - timestamp  DateTime      -- submission time of the swap (UTC)
  - pair       String        -- trading pair, e.g. "SOL-USDC"
  - token_in   String        -- mint or symbol of the token sold by the user
  - token_out  String        -- mint or symbol of the token bought by the user
  - amount_in  String        -- raw integer amount of token_in, as a decimal string
  - amount_out String        -- raw integer amount of token_out, as a decimal string
  - fee_bps    UInt64        -- dynamic swap fee charged, in basis points
  - pool       String        -- pool account address
  - status     String        -- pending, confirmed, rejected or expired

Notes:
  - Amounts are stored as strings of raw integer units; cast with toUInt256(amount_in) before summing.
  - Time filters should use timestamp, e.g. timestamp >= now() - INTERVAL 24 HOUR.
  - A multi-hop route shares one signature across its hop rows.
`
