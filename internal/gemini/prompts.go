package gemini

// statementPrompt asks for a plain JSON array. The legend paragraph matters
// for credit card bills, which mark direction with a letter code explained in
// a separate table rather than with separate columns.
const statementPrompt = "You are a financial document parser. Extract all transactions from this bank statement or credit card bill PDF.\n\n" +
	"For each transaction, extract:\n" +
	"1. Date (in YYYY-MM-DD format)\n" +
	"2. Description/Narration (full transaction description)\n" +
	"3. Amount (as a positive number)\n" +
	"4. Direction (either \"credit\" or \"debit\")\n" +
	"   - Credit: Money coming in (deposits, refunds, credits)\n" +
	"   - Debit: Money going out (payments, purchases, withdrawals)\n" +
	"5. Balance After (if available, the balance after this transaction)\n\n" +
	"Direction codes:\n" +
	"- Many statements mark each transaction with a short code such as \"C\", \"D\", \"Cr\", \"Dr\" or \"M\".\n" +
	"- First find the legend or definitions table in the document that explains these codes and use it to decide the direction.\n" +
	"- If there is no legend, use the column headings (Debit/Withdrawal vs Credit/Deposit) or the sign of the amount.\n\n" +
	"Return the transactions as a JSON array. Each transaction should be an object with these fields:\n" +
	"- date: string in YYYY-MM-DD format\n" +
	"- description: string\n" +
	"- amount: number (positive)\n" +
	"- direction: \"credit\" or \"debit\"\n" +
	"- balance_after: number or null\n\n" +
	"Example format:\n" +
	"[\n" +
	"  {\"date\": \"2024-10-15\", \"description\": \"UPI Payment to Merchant ABC\", \"amount\": 1500.00, \"direction\": \"debit\", \"balance_after\": 8500.00},\n" +
	"  {\"date\": \"2024-10-16\", \"description\": \"Salary Credit\", \"amount\": 50000.00, \"direction\": \"credit\", \"balance_after\": 58500.00}\n" +
	"]\n\n" +
	"Extract ALL transactions from the document.\n" +
	"Return ONLY valid raw JSON.\n" +
	"Do NOT wrap the response in code fences.\n" +
	"Output must begin with \"[\" and end with \"]\".\n"
